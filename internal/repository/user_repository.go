package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	apperrors "maskan/internal/errors"
	"maskan/internal/model"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	// FindByID never loads the password hash.
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, update model.ProfileUpdate) (*model.User, error)

	SetSession(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	ClearSession(ctx context.Context, id primitive.ObjectID) error

	SetVerificationToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	// ConsumeVerificationToken marks the matching user verified and clears the
	// token in one atomic step.
	ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error)
	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error
	// ConsumeResetToken swaps the password hash and clears the token in one
	// atomic step.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*model.User, error)

	AddListing(ctx context.Context, userID, listingID primitive.ObjectID) error
	RemoveListing(ctx context.Context, userID, listingID primitive.ObjectID) error
	SetListings(ctx context.Context, userID primitive.ObjectID, listingIDs []primitive.ObjectID) error
}

var withoutPassword = bson.M{"password": 0}

type userRepository struct {
	col *mongo.Collection
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *mongo.Database) UserRepository {
	return &userRepository{col: db.Collection("users")}
}

// EnsureUserIndexes creates the unique email index and the token lookup indexes.
func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

// Create inserts a user. A duplicate email is reported as ErrDuplicateEmail.
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Listings == nil {
		user.Listings = []primitive.ObjectID{}
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByID finds a user by ID.
func (r *userRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	var user model.User
	err := r.col.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(withoutPassword)).Decode(&user)
	if err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

// FindByEmail finds a user by email, including the password hash.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := r.col.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

// UpdateProfile applies the present fields and returns the updated user.
func (r *userRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update model.ProfileUpdate) (*model.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.PasswordHash != nil {
		set["password"] = *update.PasswordHash
	}
	if update.TokensValidAfter != nil {
		set["tokensValidAfter"] = *update.TokensValidAfter
	}

	var user model.User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutPassword),
	).Decode(&user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.ErrDuplicateEmail
		}
		return nil, notFound(err, apperrors.ErrUserNotFound)
	}
	return &user, nil
}

// SetSession records the hash of the active bearer token.
func (r *userRepository) SetSession(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"authToken":        tokenHash,
		"authTokenExpires": expires,
		"updatedAt":        time.Now().UTC(),
	}})
}

// ClearSession forgets the active bearer token.
func (r *userRepository) ClearSession(ctx context.Context, id primitive.ObjectID) error {
	return r.updateByID(ctx, id, bson.M{
		"$unset": bson.M{"authToken": "", "authTokenExpires": ""},
		"$set":   bson.M{"updatedAt": time.Now().UTC()},
	})
}

// SetVerificationToken stores a verification token hash, replacing any previous one.
func (r *userRepository) SetVerificationToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"verificationToken":        tokenHash,
		"verificationTokenExpires": expires,
		"updatedAt":                time.Now().UTC(),
	}})
}

// ConsumeVerificationToken verifies the user holding an unexpired token.
func (r *userRepository) ConsumeVerificationToken(ctx context.Context, tokenHash string, now time.Time) (*model.User, error) {
	filter := bson.M{
		"verificationToken":        tokenHash,
		"verificationTokenExpires": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"isVerified": true, "updatedAt": now},
		"$unset": bson.M{"verificationToken": "", "verificationTokenExpires": ""},
	}

	var user model.User
	err := r.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutPassword),
	).Decode(&user)
	if err != nil {
		return nil, notFound(err, apperrors.ErrInvalidOrExpiredToken)
	}
	return &user, nil
}

// SetResetToken stores a password reset token hash.
func (r *userRepository) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenHash string, expires time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": expires,
		"updatedAt":            time.Now().UTC(),
	}})
}

// ConsumeResetToken replaces the password of the user holding an unexpired
// token and invalidates every token issued before now.
func (r *userRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*model.User, error) {
	filter := bson.M{
		"resetPasswordToken":   tokenHash,
		"resetPasswordExpires": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set": bson.M{
			"password":         passwordHash,
			"tokensValidAfter": now.Truncate(time.Second),
			"updatedAt":        now,
		},
		"$unset": bson.M{
			"resetPasswordToken":   "",
			"resetPasswordExpires": "",
			"authToken":            "",
			"authTokenExpires":     "",
		},
	}

	var user model.User
	err := r.col.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutPassword),
	).Decode(&user)
	if err != nil {
		return nil, notFound(err, apperrors.ErrInvalidOrExpiredToken)
	}
	return &user, nil
}

// AddListing appends a listing id to the owner's index. $addToSet keeps a
// retried call from duplicating the entry.
func (r *userRepository) AddListing(ctx context.Context, userID, listingID primitive.ObjectID) error {
	return r.updateByID(ctx, userID, bson.M{"$addToSet": bson.M{"listings": listingID}})
}

// RemoveListing pulls a listing id from the owner's index.
func (r *userRepository) RemoveListing(ctx context.Context, userID, listingID primitive.ObjectID) error {
	return r.updateByID(ctx, userID, bson.M{"$pull": bson.M{"listings": listingID}})
}

// SetListings overwrites the owner's index.
func (r *userRepository) SetListings(ctx context.Context, userID primitive.ObjectID, listingIDs []primitive.ObjectID) error {
	if listingIDs == nil {
		listingIDs = []primitive.ObjectID{}
	}
	return r.updateByID(ctx, userID, bson.M{"$set": bson.M{"listings": listingIDs}})
}

func (r *userRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	res, err := r.col.UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

// notFound turns mongo.ErrNoDocuments into the given domain error.
func notFound(err, domainErr error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domainErr
	}
	return err
}
