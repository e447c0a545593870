package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"maskan/internal/model"
)

func TestListingUpdate_UnsetsClearedFields(t *testing.T) {
	listing := &model.Listing{
		ID:          primitive.NewObjectID(),
		Owner:       primitive.NewObjectID(),
		Title:       "Marina Villa",
		City:        "dubai",
		Country:     "UAE",
		Description: "Sea view",
		Broker:      "Acme",
	}

	empty := ""
	model.ListingPatch{Description: &empty, Country: &empty}.Apply(listing)

	update, err := listingUpdate(listing)
	require.NoError(t, err)

	set, ok := update["$set"].(bson.M)
	require.True(t, ok)
	unset, ok := update["$unset"].(bson.M)
	require.True(t, ok)

	assert.Contains(t, unset, "description")
	assert.Contains(t, unset, "country")
	assert.NotContains(t, set, "description")
	assert.NotContains(t, set, "country")

	assert.Equal(t, "Acme", set["broker"])
	assert.NotContains(t, unset, "broker")
	assert.Equal(t, "Marina Villa", set["title"])
}

func TestListingUpdate_KeepsImmutableFields(t *testing.T) {
	listing := &model.Listing{ID: primitive.NewObjectID(), Owner: primitive.NewObjectID(), Title: "Loft"}

	update, err := listingUpdate(listing)
	require.NoError(t, err)

	set := update["$set"].(bson.M)
	unset := update["$unset"].(bson.M)
	for _, key := range []string{"_id", "user", "createdAt"} {
		assert.NotContains(t, set, key)
		assert.NotContains(t, unset, key)
	}
	assert.Contains(t, set, "updatedAt")
}

func TestOptionalListingFields(t *testing.T) {
	keys := optionalListingFields
	assert.Contains(t, keys, "thumbnail")
	assert.Contains(t, keys, "pdf")
	assert.NotContains(t, keys, "title")
	assert.NotContains(t, keys, "images")
}
