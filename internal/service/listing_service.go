package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"maskan/internal/cache"
	"maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/repository"
	"maskan/internal/validate"
)

const (
	listingsVersionKey = "listings:version"
	listingsCachePfx   = "listings:query"
	linkRetries        = 3
)

// ListingService manages listings and keeps each owner's listing index in
// step with the listings they own.
type ListingService interface {
	List(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error)
	Get(ctx context.Context, id string) (*model.Listing, error)
	// ListByOwner returns the owner's listings and repairs their index.
	ListByOwner(ctx context.Context, owner *model.User) ([]model.Listing, error)
	Create(ctx context.Context, owner *model.User, patch model.ListingPatch, parts []Part) (*model.Listing, error)
	Update(ctx context.Context, owner *model.User, id string, patch model.ListingPatch, parts []Part) (*model.Listing, error)
	Delete(ctx context.Context, owner *model.User, id string) (*model.Listing, error)
	// Import stores a listing whose files are already hosted.
	Import(ctx context.Context, owner *model.User, listing model.Listing) (*model.Listing, error)
}

type listingService struct {
	listingRepo repository.ListingRepository
	userRepo    repository.UserRepository
	tx          repository.Transactor
	uploads     UploadService
	cache       *cache.Client
	cacheTTL    time.Duration
	maxImages   int
	validator   *validate.Validator
	logger      *zap.Logger
}

// ListingServiceConfig holds the tunables of the listing service.
type ListingServiceConfig struct {
	CacheTTL  time.Duration
	MaxImages int
}

// NewListingService creates a new listing service.
func NewListingService(
	listingRepo repository.ListingRepository,
	userRepo repository.UserRepository,
	tx repository.Transactor,
	uploads UploadService,
	cache *cache.Client,
	cfg ListingServiceConfig,
	logger *zap.Logger,
) ListingService {
	return &listingService{
		listingRepo: listingRepo,
		userRepo:    userRepo,
		tx:          tx,
		uploads:     uploads,
		cache:       cache,
		cacheTTL:    cfg.CacheTTL,
		maxImages:   cfg.MaxImages,
		validator:   validate.New(),
		logger:      logger,
	}
}

// createRules lists the fields a new listing must carry.
type createRules struct {
	Title        *string               `json:"title" validate:"required,min=1"`
	Price        *model.Price          `json:"price" validate:"required"`
	City         *string               `json:"city" validate:"required,min=1"`
	Location     *string               `json:"location" validate:"required,min=1"`
	PropertyType *string               `json:"propertyType" validate:"required,min=1"`
	Beds         *int                  `json:"beds" validate:"required,min=0"`
	Baths        *int                  `json:"baths" validate:"omitnil,min=0"`
	Purpose      *model.ListingPurpose `json:"purpose" validate:"required,oneof=sale rent"`
	Status       *model.ListingStatus  `json:"status" validate:"omitnil,oneof=available reserved sold rented"`
}

// updateRules rejects present-but-blank required fields.
type updateRules struct {
	Title        *string               `json:"title" validate:"omitnil,min=1"`
	City         *string               `json:"city" validate:"omitnil,min=1"`
	Location     *string               `json:"location" validate:"omitnil,min=1"`
	PropertyType *string               `json:"propertyType" validate:"omitnil,min=1"`
	Beds         *int                  `json:"beds" validate:"omitnil,min=0"`
	Baths        *int                  `json:"baths" validate:"omitnil,min=0"`
	Purpose      *model.ListingPurpose `json:"purpose" validate:"omitnil,oneof=sale rent"`
	Status       *model.ListingStatus  `json:"status" validate:"omitnil,oneof=available reserved sold rented"`
	ImageMode    model.ImageMode       `json:"imageMode" validate:"omitempty,oneof=replace append"`
}

// importRules checks a fully formed listing.
type importRules struct {
	Title        string               `json:"title" validate:"required"`
	City         string               `json:"city" validate:"required"`
	Location     string               `json:"location" validate:"required"`
	PropertyType string               `json:"propertyType" validate:"required"`
	Beds         int                  `json:"beds" validate:"min=0"`
	Purpose      model.ListingPurpose `json:"purpose" validate:"required,oneof=sale rent"`
	Images       []string             `json:"images" validate:"required,min=1"`
}

// List returns listings matching filter, newest first. Results are cached
// under the current listings version, so any write makes them unreachable.
func (s *listingService) List(ctx context.Context, filter model.ListingFilter) ([]model.Listing, error) {
	key := fmt.Sprintf("%s:v%d", cache.QueryKey(listingsCachePfx, filter.Params()), s.cache.Counter(ctx, listingsVersionKey))

	var cached []model.Listing
	if s.cache.GetJSON(ctx, key, &cached) && cached != nil {
		return cached, nil
	}

	listings, err := s.listingRepo.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	s.cache.SetJSON(ctx, key, listings, s.cacheTTL)
	return listings, nil
}

// Get returns one listing.
func (s *listingService) Get(ctx context.Context, id string) (*model.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.ErrListingNotFound
	}
	return s.listingRepo.FindByID(ctx, oid)
}

// ListByOwner returns the owner's listings. When the owner's index disagrees
// with actual ownership it is rewritten to match.
func (s *listingService) ListByOwner(ctx context.Context, owner *model.User) ([]model.Listing, error) {
	listings, err := s.listingRepo.FindByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.ID)
	}
	if !sameIDs(ids, owner.Listings) {
		if err := s.userRepo.SetListings(ctx, owner.ID, ids); err != nil {
			s.logger.Warn("reconcile owner listings", zap.String("user_id", owner.ID.Hex()), zap.Error(err))
		} else {
			s.logger.Info("owner listings reconciled",
				zap.String("user_id", owner.ID.Hex()),
				zap.Int("indexed", len(owner.Listings)),
				zap.Int("owned", len(ids)),
			)
		}
	}
	return listings, nil
}

// Create uploads the files, then inserts the listing and links it to its
// owner. Nothing is persisted unless every file was stored.
func (s *listingService) Create(ctx context.Context, owner *model.User, patch model.ListingPatch, parts []Part) (*model.Listing, error) {
	if err := s.validator.Struct(createRules{
		Title:        patch.Title,
		Price:        patch.Price,
		City:         patch.City,
		Location:     patch.Location,
		PropertyType: patch.PropertyType,
		Beds:         patch.Beds,
		Baths:        patch.Baths,
		Purpose:      patch.Purpose,
		Status:       patch.Status,
	}); err != nil {
		return nil, err
	}

	uploaded, err := s.uploads.Upload(ctx, parts, ListingUploadRules(s.maxImages, true), UploadOptions{
		Prefix:         "listings",
		ThumbnailField: "images",
	})
	if err != nil {
		return nil, err
	}

	listing := &model.Listing{
		Status:    model.ListingStatusAvailable,
		Amenities: []string{},
		Owner:     owner.ID,
	}
	patch.Apply(listing)
	listing.SetImages(uploaded.URLs("images"))
	listing.PDF = uploaded.First("pdf")
	listing.Thumbnail = uploaded.ThumbnailURL()

	if err := s.insert(ctx, listing); err != nil {
		s.uploads.Discard(ctx, uploaded)
		return nil, err
	}

	s.bumpVersion(ctx)
	s.logger.Info("listing created",
		zap.String("listing_id", listing.ID.Hex()),
		zap.String("user_id", owner.ID.Hex()),
		zap.Int("images", len(listing.Images)),
	)
	return listing, nil
}

// Update merges patch into the caller's listing. Uploaded images replace the
// existing set or are appended to it, per patch.ImageMode.
func (s *listingService) Update(ctx context.Context, owner *model.User, id string, patch model.ListingPatch, parts []Part) (*model.Listing, error) {
	listing, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Struct(updateRules{
		Title:        patch.Title,
		City:         patch.City,
		Location:     patch.Location,
		PropertyType: patch.PropertyType,
		Beds:         patch.Beds,
		Baths:        patch.Baths,
		Purpose:      patch.Purpose,
		Status:       patch.Status,
		ImageMode:    patch.ImageMode,
	}); err != nil {
		return nil, err
	}

	mode := patch.ImageMode
	if mode == "" {
		mode = model.ImageModeReplace
	}
	newImages := countField(parts, "images")
	if mode == model.ImageModeAppend && len(listing.Images)+newImages > s.maxImages {
		return nil, errors.NewValidationError("images",
			fmt.Sprintf("images must not exceed %d in total", s.maxImages))
	}

	opts := UploadOptions{Prefix: "listings"}
	if mode == model.ImageModeReplace || listing.Thumbnail == "" {
		opts.ThumbnailField = "images"
	}
	uploaded, err := s.uploads.Upload(ctx, parts, ListingUploadRules(s.maxImages, false), opts)
	if err != nil {
		return nil, err
	}

	patch.Apply(listing)
	if urls := uploaded.URLs("images"); len(urls) > 0 {
		// TODO: garbage-collect blobs orphaned by replace-mode updates.
		if mode == model.ImageModeAppend {
			urls = append(append([]string{}, listing.Images...), urls...)
		}
		listing.SetImages(urls)
		if thumb := uploaded.ThumbnailURL(); thumb != "" {
			listing.Thumbnail = thumb
		}
	}
	if pdf := uploaded.First("pdf"); pdf != "" {
		listing.PDF = pdf
	}

	if err := s.listingRepo.Update(ctx, listing); err != nil {
		s.uploads.Discard(ctx, uploaded)
		return nil, err
	}

	s.bumpVersion(ctx)
	s.logger.Info("listing updated",
		zap.String("listing_id", listing.ID.Hex()),
		zap.String("user_id", owner.ID.Hex()),
		zap.String("image_mode", string(mode)),
	)
	return listing, nil
}

// Delete removes the caller's listing and unlinks it from their index.
func (s *listingService) Delete(ctx context.Context, owner *model.User, id string) (*model.Listing, error) {
	listing, err := s.owned(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.listingRepo.Delete(ctx, listing.ID, owner.ID); err != nil {
			return err
		}
		if s.tx.Atomic() {
			return s.userRepo.RemoveListing(ctx, owner.ID, listing.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !s.tx.Atomic() {
		unlink := func() error { return s.userRepo.RemoveListing(ctx, owner.ID, listing.ID) }
		if err := backoff.Retry(unlink, s.retryPolicy(ctx)); err != nil {
			// The index is repaired on the owner's next listing read.
			s.logger.Warn("unlink deleted listing", zap.String("listing_id", listing.ID.Hex()), zap.Error(err))
		}
	}

	s.bumpVersion(ctx)
	s.logger.Info("listing deleted", zap.String("listing_id", listing.ID.Hex()), zap.String("user_id", owner.ID.Hex()))
	return listing, nil
}

// Import inserts a listing for owner through the same path as Create.
func (s *listingService) Import(ctx context.Context, owner *model.User, listing model.Listing) (*model.Listing, error) {
	listing.ID = primitive.NilObjectID
	listing.Owner = owner.ID
	listing.SetImages(model.UniqueStrings(listing.Images))
	listing.Amenities = model.UniqueStrings(listing.Amenities)
	if listing.Status == "" {
		listing.Status = model.ListingStatusAvailable
	}

	if err := s.validator.Struct(importRules{
		Title:        listing.Title,
		City:         listing.City,
		Location:     listing.Location,
		PropertyType: listing.PropertyType,
		Beds:         listing.Beds,
		Purpose:      listing.Purpose,
		Images:       listing.Images,
	}); err != nil {
		return nil, err
	}

	if err := s.insert(ctx, &listing); err != nil {
		return nil, err
	}
	s.bumpVersion(ctx)
	return &listing, nil
}

// owned loads a listing and checks that owner may mutate it.
func (s *listingService) owned(ctx context.Context, owner *model.User, id string) (*model.Listing, error) {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.Owner != owner.ID {
		s.logger.Warn("listing ownership violation",
			zap.String("listing_id", listing.ID.Hex()),
			zap.String("user_id", owner.ID.Hex()),
		)
		return nil, errors.ErrForbidden
	}
	return listing, nil
}

// insert writes the listing and the owner link as one unit. Without
// transactions the link is retried and the listing is removed if linking
// still fails.
func (s *listingService) insert(ctx context.Context, listing *model.Listing) error {
	if s.tx.Atomic() {
		return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
			if err := s.listingRepo.Create(ctx, listing); err != nil {
				return err
			}
			return s.userRepo.AddListing(ctx, listing.Owner, listing.ID)
		})
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return err
	}

	link := func() error {
		err := s.userRepo.AddListing(ctx, listing.Owner, listing.ID)
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(link, s.retryPolicy(ctx)); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if derr := s.listingRepo.Delete(cleanupCtx, listing.ID, listing.Owner); derr != nil {
			s.logger.Error("remove unlinked listing", zap.String("listing_id", listing.ID.Hex()), zap.Error(derr))
		}
		return fmt.Errorf("link listing to owner: %w", err)
	}
	return nil
}

func (s *listingService) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return backoff.WithContext(backoff.WithMaxRetries(b, linkRetries), ctx)
}

func (s *listingService) bumpVersion(ctx context.Context) {
	s.cache.Incr(context.WithoutCancel(ctx), listingsVersionKey)
}

func countField(parts []Part, field string) int {
	n := 0
	for _, p := range parts {
		if p.Field == field {
			n++
		}
	}
	return n
}

// sameIDs compares two id lists as sets.
func sameIDs(a, b []primitive.ObjectID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[primitive.ObjectID]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
