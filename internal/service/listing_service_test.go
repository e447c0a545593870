package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"maskan/internal/cache"
	apperrors "maskan/internal/errors"
	"maskan/internal/model"
	"maskan/internal/repository"
	"maskan/internal/repository/memory"
	"maskan/internal/storage"
)

type listingFixture struct {
	svc      ListingService
	listings *memory.Listings
	users    *memory.Users
	store    *storage.MemoryStore
	ann      *model.User
	bob      *model.User
}

func newListingFixture(t *testing.T) *listingFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	log := zaptest.NewLogger(t)

	f := &listingFixture{
		listings: memory.NewListings(),
		users:    memory.NewUsers(),
		store:    storage.NewMemoryStore(),
	}
	f.svc = NewListingService(
		f.listings,
		f.users,
		repository.NewDirectTransactor(),
		NewUploadService(f.store, 1<<20, log),
		c,
		ListingServiceConfig{CacheTTL: time.Minute, MaxImages: 3},
		log,
	)

	f.ann = &model.User{Name: "Ann", Email: "ann@x.com"}
	f.bob = &model.User{Name: "Bob", Email: "bob@x.com"}
	require.NoError(t, f.users.Create(context.Background(), f.ann))
	require.NoError(t, f.users.Create(context.Background(), f.bob))
	return f
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func validPatch(t *testing.T) model.ListingPatch {
	t.Helper()
	price, err := model.NewPrice("1,250,000")
	require.NoError(t, err)
	purpose := model.ListingPurposeSale
	amenities := []string{"pool", "gym", "pool"}
	return model.ListingPatch{
		Title:        strPtr("Marina Villa"),
		Price:        &price,
		City:         strPtr("Dubai"),
		Location:     strPtr("Marina"),
		PropertyType: strPtr("villa"),
		Beds:         intPtr(4),
		Baths:        intPtr(3),
		Purpose:      &purpose,
		Amenities:    &amenities,
	}
}

func (f *listingFixture) create(t *testing.T, owner *model.User, images ...string) *model.Listing {
	t.Helper()
	parts := make([]Part, 0, len(images))
	for _, name := range images {
		parts = append(parts, imagePart(t, name))
	}
	l, err := f.svc.Create(context.Background(), owner, validPatch(t), parts)
	require.NoError(t, err)
	return l
}

func TestListingService_Create(t *testing.T) {
	f := newListingFixture(t)

	l, err := f.svc.Create(context.Background(), f.ann, validPatch(t),
		[]Part{imagePart(t, "front.png"), imagePart(t, "pool.png"), pdfPart("plan.pdf")})
	require.NoError(t, err)

	require.Len(t, l.Images, 2)
	assert.Equal(t, l.Images[0], l.Image)
	assert.True(t, strings.HasSuffix(l.Images[0], "-front.png"))
	assert.NotEmpty(t, l.PDF)
	assert.NotEmpty(t, l.Thumbnail)
	assert.Equal(t, f.ann.ID, l.Owner)
	assert.Equal(t, model.ListingStatusAvailable, l.Status)
	assert.Equal(t, []string{"pool", "gym"}, l.Amenities)
	assert.Equal(t, "1250000", l.Price.String())

	owner, _ := f.users.Get(f.ann.ID)
	assert.Equal(t, []primitive.ObjectID{l.ID}, owner.Listings)
}

func TestListingService_CreateValidation(t *testing.T) {
	f := newListingFixture(t)

	patch := validPatch(t)
	patch.Title = nil
	_, err := f.svc.Create(context.Background(), f.ann, patch, []Part{imagePart(t, "a.png")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	patch = validPatch(t)
	bad := model.ListingPurpose("lease")
	patch.Purpose = &bad
	_, err = f.svc.Create(context.Background(), f.ann, patch, []Part{imagePart(t, "a.png")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Create(context.Background(), f.ann, validPatch(t), nil)
	assert.ErrorIs(t, err, apperrors.ErrUploadRejected)

	assert.Zero(t, f.listings.Count())
	assert.Zero(t, f.store.Puts())
}

func TestListingService_CreateUploadFailurePersistsNothing(t *testing.T) {
	f := newListingFixture(t)
	f.store.PutHook = func(key string) error {
		if strings.HasSuffix(key, "-second.png") {
			return errors.New("s3 down")
		}
		return nil
	}

	_, err := f.svc.Create(context.Background(), f.ann, validPatch(t),
		[]Part{imagePart(t, "first.png"), imagePart(t, "second.png")})

	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Zero(t, f.listings.Count())
	assert.Empty(t, f.store.Keys())
	owner, _ := f.users.Get(f.ann.ID)
	assert.Empty(t, owner.Listings)
}

func TestListingService_CreateCompensatesFailedOwnerLink(t *testing.T) {
	f := newListingFixture(t)
	f.users.FailAddListing = errors.New("write conflict")

	_, err := f.svc.Create(context.Background(), f.ann, validPatch(t), []Part{imagePart(t, "a.png")})

	require.Error(t, err)
	assert.Zero(t, f.listings.Count())
	assert.Empty(t, f.store.Keys())
}

func TestListingService_OwnershipEnforced(t *testing.T) {
	f := newListingFixture(t)
	l := f.create(t, f.ann, "a.png")
	puts := f.store.Puts()

	_, err := f.svc.Update(context.Background(), f.bob, l.ID.Hex(),
		model.ListingPatch{Title: strPtr("Stolen")}, []Part{imagePart(t, "x.png")})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
	assert.Equal(t, puts, f.store.Puts(), "no upload before the ownership check")

	_, err = f.svc.Delete(context.Background(), f.bob, l.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	got, err := f.svc.Get(context.Background(), l.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Marina Villa", got.Title)
	assert.Equal(t, l.Images, got.Images)
}

func TestListingService_UpdateNotFound(t *testing.T) {
	f := newListingFixture(t)

	_, err := f.svc.Update(context.Background(), f.ann, primitive.NewObjectID().Hex(), model.ListingPatch{}, nil)
	assert.ErrorIs(t, err, apperrors.ErrListingNotFound)

	_, err = f.svc.Update(context.Background(), f.ann, "not-an-id", model.ListingPatch{}, nil)
	assert.ErrorIs(t, err, apperrors.ErrListingNotFound)
}

func TestListingService_UpdateImageModes(t *testing.T) {
	tests := []struct {
		name      string
		mode      model.ImageMode
		wantCount int
		wantFirst string
	}{
		{"default replaces", "", 1, "-new.png"},
		{"replace", model.ImageModeReplace, 1, "-new.png"},
		{"append", model.ImageModeAppend, 3, "-a.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newListingFixture(t)
			l := f.create(t, f.ann, "a.png", "b.png")

			out, err := f.svc.Update(context.Background(), f.ann, l.ID.Hex(),
				model.ListingPatch{ImageMode: tt.mode}, []Part{imagePart(t, "new.png")})
			require.NoError(t, err)

			require.Len(t, out.Images, tt.wantCount)
			assert.Equal(t, out.Images[0], out.Image)
			assert.True(t, strings.HasSuffix(out.Image, tt.wantFirst))
			assert.True(t, strings.HasSuffix(out.Images[len(out.Images)-1], "-new.png"))
		})
	}
}

func TestListingService_UpdateAppendRespectsCap(t *testing.T) {
	f := newListingFixture(t)
	l := f.create(t, f.ann, "a.png", "b.png")

	_, err := f.svc.Update(context.Background(), f.ann, l.ID.Hex(),
		model.ListingPatch{ImageMode: model.ImageModeAppend},
		[]Part{imagePart(t, "c.png"), imagePart(t, "d.png")})

	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListingService_UpdateKeepsImagesAndOwner(t *testing.T) {
	f := newListingFixture(t)
	l := f.create(t, f.ann, "a.png")

	status := model.ListingStatusSold
	out, err := f.svc.Update(context.Background(), f.ann, l.ID.Hex(),
		model.ListingPatch{Title: strPtr("Sold Villa"), Status: &status}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Sold Villa", out.Title)
	assert.Equal(t, model.ListingStatusSold, out.Status)
	assert.Equal(t, l.Images, out.Images)
	assert.Equal(t, f.ann.ID, out.Owner)

	_, err = f.svc.Update(context.Background(), f.ann, l.ID.Hex(), model.ListingPatch{Title: strPtr("")}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.svc.Update(context.Background(), f.ann, l.ID.Hex(), model.ListingPatch{ImageMode: "merge"}, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListingService_Delete(t *testing.T) {
	f := newListingFixture(t)
	l := f.create(t, f.ann, "a.png")

	deleted, err := f.svc.Delete(context.Background(), f.ann, l.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, l.ID, deleted.ID)

	_, err = f.svc.Get(context.Background(), l.ID.Hex())
	assert.ErrorIs(t, err, apperrors.ErrListingNotFound)

	owner, _ := f.users.Get(f.ann.ID)
	assert.Empty(t, owner.Listings)
}

func TestListingService_ListIsCachedUntilWrite(t *testing.T) {
	f := newListingFixture(t)
	f.create(t, f.ann, "a.png")

	filter := model.ListingFilter{City: "Dubai"}
	first, err := f.svc.List(context.Background(), filter)
	require.NoError(t, err)
	second, err := f.svc.List(context.Background(), filter)
	require.NoError(t, err)

	assert.Equal(t, 1, f.listings.FindCalls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Price.String(), second[0].Price.String())

	f.create(t, f.bob, "b.png")
	third, err := f.svc.List(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.Equal(t, 2, f.listings.FindCalls)
}

func TestListingService_ListEmpty(t *testing.T) {
	f := newListingFixture(t)

	out, err := f.svc.List(context.Background(), model.ListingFilter{City: "Nowhere"})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestListingService_ListByOwnerReconciles(t *testing.T) {
	f := newListingFixture(t)
	a := f.create(t, f.ann, "a.png")
	b := f.create(t, f.ann, "b.png")
	f.create(t, f.bob, "c.png")

	dangling := primitive.NewObjectID()
	require.NoError(t, f.users.SetListings(context.Background(), f.ann.ID, []primitive.ObjectID{a.ID, dangling}))
	ann, _ := f.users.Get(f.ann.ID)

	out, err := f.svc.ListByOwner(context.Background(), &ann)
	require.NoError(t, err)
	assert.Len(t, out, 2)

	repaired, _ := f.users.Get(f.ann.ID)
	assert.ElementsMatch(t, []primitive.ObjectID{a.ID, b.ID}, repaired.Listings)
}

func TestListingService_Import(t *testing.T) {
	f := newListingFixture(t)

	price, _ := model.NewPrice("900000")
	out, err := f.svc.Import(context.Background(), f.ann, model.Listing{
		Title:        "Downtown Flat",
		Price:        price,
		City:         "Dubai",
		Location:     "Downtown",
		PropertyType: "apartment",
		Beds:         2,
		Purpose:      model.ListingPurposeRent,
		Images:       []string{"https://cdn.example/1.jpg", "https://cdn.example/1.jpg", "https://cdn.example/2.jpg"},
		Owner:        f.bob.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, f.ann.ID, out.Owner)
	assert.Equal(t, []string{"https://cdn.example/1.jpg", "https://cdn.example/2.jpg"}, out.Images)
	assert.Equal(t, out.Images[0], out.Image)
	owner, _ := f.users.Get(f.ann.ID)
	assert.Equal(t, []primitive.ObjectID{out.ID}, owner.Listings)

	_, err = f.svc.Import(context.Background(), f.ann, model.Listing{Title: "No images", City: "Dubai"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
