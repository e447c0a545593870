package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "maskan/internal/errors"
	"maskan/internal/storage"
)

func TestUploadValidator_Rejects(t *testing.T) {
	v := NewUploadValidator(1 << 20)
	rules := ListingUploadRules(2, true)

	tests := []struct {
		name  string
		parts []Part
	}{
		{"no images", nil},
		{"too many images", []Part{imagePart(t, "a.png"), imagePart(t, "b.png"), imagePart(t, "c.png")}},
		{"unknown field", []Part{imagePart(t, "a.png"), bytesPart("avatar", "x.png", "image/png", pngBytes(t))}},
		{"declared type not allowed", []Part{bytesPart("images", "a.txt", "text/plain", pngBytes(t))}},
		{"content is not an image", []Part{bytesPart("images", "a.png", "image/png", []byte("just some text"))}},
		{"empty file", []Part{bytesPart("images", "a.png", "image/png", nil)}},
		{"pdf field with image", []Part{imagePart(t, "a.png"), bytesPart("pdf", "a.pdf", "application/pdf", pngBytes(t))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.parts, rules)
			assert.ErrorIs(t, err, apperrors.ErrUploadRejected)
		})
	}
}

func TestUploadValidator_SizeLimit(t *testing.T) {
	data := pngBytes(t)
	v := NewUploadValidator(int64(len(data) - 1))

	_, err := v.Validate([]Part{bytesPart("images", "a.png", "image/png", data)}, ListingUploadRules(1, true))
	assert.ErrorIs(t, err, apperrors.ErrUploadRejected)

	// A lying Size header is still caught while reading.
	p := bytesPart("images", "a.png", "image/png", data)
	p.Size = 1
	_, err = v.Validate([]Part{p}, ListingUploadRules(1, true))
	assert.ErrorIs(t, err, apperrors.ErrUploadRejected)
}

func TestUploadValidator_SniffsOctetStream(t *testing.T) {
	v := NewUploadValidator(1 << 20)
	out, err := v.Validate([]Part{bytesPart("images", "a.png", "application/octet-stream", pngBytes(t))}, ListingUploadRules(1, true))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "image/png", out[0].contentType)
}

// ftypHeader builds the leading ISO-BMFF box used by HEIC and AVIF files.
func ftypHeader(brand string) []byte {
	box := []byte{0x00, 0x00, 0x00, 0x18}
	box = append(box, "ftyp"+brand...)
	box = append(box, 0x00, 0x00, 0x00, 0x00)
	box = append(box, "mif1"+brand...)
	return append(box, make([]byte, 64)...)
}

func TestUploadValidator_AcceptsModernImageFormats(t *testing.T) {
	v := NewUploadValidator(1 << 20)

	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"heic", "image/heic", ftypHeader("heic"), "image/heic"},
		{"avif", "image/avif", ftypHeader("avif"), "image/avif"},
		{"heic without declared type", "application/octet-stream", ftypHeader("heic"), "image/heic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := v.Validate([]Part{bytesPart("images", "photo."+tt.name, tt.declared, tt.data)}, ListingUploadRules(1, true))
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].contentType)
		})
	}
}

func TestUploadService_StoresInRequestOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewUploadService(store, 1<<20, zaptest.NewLogger(t))

	parts := []Part{imagePart(t, "first.png"), imagePart(t, "second.png"), pdfPart("brochure.pdf")}
	res, err := svc.Upload(context.Background(), parts, ListingUploadRules(5, true), UploadOptions{
		Prefix:         "listings",
		ThumbnailField: "images",
	})
	require.NoError(t, err)

	urls := res.URLs("images")
	require.Len(t, urls, 2)
	assert.True(t, strings.HasSuffix(urls[0], "-first.png"))
	assert.True(t, strings.HasSuffix(urls[1], "-second.png"))
	assert.True(t, strings.HasSuffix(res.First("pdf"), "-brochure.pdf"))
	require.NotNil(t, res.Thumbnail)
	assert.Equal(t, "image/jpeg", store.ContentType(res.Thumbnail.Key))
	assert.Len(t, store.Keys(), 4)

	svc.Discard(context.Background(), res)
	assert.Empty(t, store.Keys())
}

func TestUploadService_FailureRemovesStoredFiles(t *testing.T) {
	store := storage.NewMemoryStore()
	var calls int32
	store.PutHook = func(key string) error {
		if strings.HasSuffix(key, "-bad.png") {
			return errors.New("bucket unavailable")
		}
		atomic.AddInt32(&calls, 1)
		return nil
	}
	svc := NewUploadService(store, 1<<20, zaptest.NewLogger(t))

	parts := []Part{imagePart(t, "ok.png"), imagePart(t, "bad.png"), imagePart(t, "ok2.png")}
	res, err := svc.Upload(context.Background(), parts, ListingUploadRules(5, true), UploadOptions{Prefix: "listings"})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Empty(t, store.Keys())
}

func TestUploadService_RejectsBeforeStoring(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewUploadService(store, 1<<20, zaptest.NewLogger(t))

	parts := []Part{imagePart(t, "ok.png"), bytesPart("images", "evil.png", "image/png", []byte("<html>"))}
	_, err := svc.Upload(context.Background(), parts, ListingUploadRules(5, true), UploadOptions{Prefix: "listings"})

	assert.ErrorIs(t, err, apperrors.ErrUploadRejected)
	assert.Zero(t, store.Puts())
}

func TestUploadService_CancelledContext(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := NewUploadService(store, 1<<20, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Upload(ctx, []Part{imagePart(t, "a.png")}, ListingUploadRules(1, true), UploadOptions{Prefix: "listings"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Keys())
}
