package repository

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "maskan/internal/errors"
	"maskan/internal/model"
)

// ListingRepository defines listing persistence operations. Mutations are
// scoped to the owner so a write can never touch another user's listing.
type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Listing, error)
	Find(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error)
	FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]model.Listing, error)
	// Update overwrites the mutable fields of the listing matching both id and owner.
	Update(ctx context.Context, listing *model.Listing) error
	Delete(ctx context.Context, id, ownerID primitive.ObjectID) error
}

type listingRepository struct {
	col *mongo.Collection
}

// NewListingRepository creates a new listing repository.
func NewListingRepository(db *mongo.Database) ListingRepository {
	return &listingRepository{col: db.Collection("listings")}
}

// EnsureListingIndexes creates the filter and owner indexes.
func EnsureListingIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("listings").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "city", Value: 1}, {Key: "location", Value: 1}}},
		{Keys: bson.D{{Key: "user", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create listing indexes: %w", err)
	}
	return nil
}

// Create inserts a listing, assigning its id if unset.
func (r *listingRepository) Create(ctx context.Context, listing *model.Listing) error {
	now := time.Now().UTC()
	if listing.ID.IsZero() {
		listing.ID = primitive.NewObjectID()
	}
	listing.CreatedAt = now
	listing.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, listing); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// FindByID finds a listing by ID.
func (r *listingRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Listing, error) {
	var listing model.Listing
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&listing); err != nil {
		return nil, notFound(err, apperrors.ErrListingNotFound)
	}
	return &listing, nil
}

// Find returns listings matching the filter, newest first. No match yields an
// empty slice.
func (r *listingRepository) Find(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	query := bson.M{}
	if filter.City != "" {
		query["city"] = filter.City
	}
	if filter.Location != "" {
		query["location"] = filter.Location
	}
	if filter.Purpose != "" {
		query["purpose"] = filter.Purpose
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	return r.find(ctx, query)
}

// FindByOwner returns every listing whose owner is ownerID.
func (r *listingRepository) FindByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]model.Listing, error) {
	return r.find(ctx, bson.M{"user": ownerID})
}

func (r *listingRepository) find(ctx context.Context, query bson.M) ([]model.Listing, error) {
	cur, err := r.col.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}

	listings := make([]model.Listing, 0)
	if err := cur.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return listings, nil
}

// Update writes every field except id, owner and creation time. Optional
// fields left empty are unset so a cleared value does not survive.
func (r *listingRepository) Update(ctx context.Context, listing *model.Listing) error {
	listing.UpdatedAt = time.Now().UTC()

	update, err := listingUpdate(listing)
	if err != nil {
		return err
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": listing.ID, "user": listing.Owner}, update)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrListingNotFound
	}
	return nil
}

// immutableListingFields are never rewritten by Update.
var immutableListingFields = []string{"_id", "user", "createdAt"}

// optionalListingFields are the omitempty keys of model.Listing.
var optionalListingFields = omitemptyKeys(reflect.TypeOf(model.Listing{}))

// listingUpdate builds the $set/$unset document for listing.
func listingUpdate(listing *model.Listing) (bson.M, error) {
	raw, err := bson.Marshal(listing)
	if err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}
	for _, key := range immutableListingFields {
		delete(set, key)
	}

	unset := bson.M{}
	for _, key := range optionalListingFields {
		if _, ok := set[key]; !ok && !slices.Contains(immutableListingFields, key) {
			unset[key] = ""
		}
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update, nil
}

func omitemptyKeys(t reflect.Type) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		name, opts, _ := strings.Cut(t.Field(i).Tag.Get("bson"), ",")
		if name == "" || name == "-" {
			continue
		}
		if slices.Contains(strings.Split(opts, ","), "omitempty") {
			keys = append(keys, name)
		}
	}
	return keys
}

// Delete removes the listing matching both id and owner.
func (r *listingRepository) Delete(ctx context.Context, id, ownerID primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "user": ownerID})
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrListingNotFound
	}
	return nil
}
