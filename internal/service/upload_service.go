package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"maskan/internal/errors"
	"maskan/internal/storage"
)

const (
	uploadConcurrency = 4
	thumbnailWidth    = 320
	cleanupTimeout    = 10 * time.Second
)

// StoredFile is a part that reached the object store.
type StoredFile struct {
	Field       string
	Filename    string
	Key         string
	URL         string
	ContentType string
	Size        int64
}

// UploadResult groups stored files by form field, in request order.
type UploadResult struct {
	Files     map[string][]StoredFile
	Thumbnail *StoredFile
}

// URLs returns the URLs stored under field.
func (r *UploadResult) URLs(field string) []string {
	if r == nil {
		return nil
	}
	files := r.Files[field]
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, f.URL)
	}
	return urls
}

// First returns the first URL stored under field, or "".
func (r *UploadResult) First(field string) string {
	if urls := r.URLs(field); len(urls) > 0 {
		return urls[0]
	}
	return ""
}

// ThumbnailURL returns the thumbnail URL, or "".
func (r *UploadResult) ThumbnailURL() string {
	if r == nil || r.Thumbnail == nil {
		return ""
	}
	return r.Thumbnail.URL
}

// UploadOptions tunes a single Upload call.
type UploadOptions struct {
	// Prefix is the first key segment, e.g. "listings".
	Prefix string
	// ThumbnailField, when set, thumbnails the first image of that field.
	ThumbnailField string
}

// UploadService validates multipart files and stores them as one unit:
// either every file is stored or none is.
type UploadService interface {
	Upload(ctx context.Context, parts []Part, rules []FieldRule, opts UploadOptions) (*UploadResult, error)
	// Discard removes stored files, for when the write that would have
	// referenced them fails.
	Discard(ctx context.Context, result *UploadResult)
}

type uploadService struct {
	store     storage.BlobStore
	validator *UploadValidator
	logger    *zap.Logger
	now       func() time.Time
}

// NewUploadService creates a new upload service.
func NewUploadService(store storage.BlobStore, maxFileSize int64, logger *zap.Logger) UploadService {
	return &uploadService{
		store:     store,
		validator: NewUploadValidator(maxFileSize),
		logger:    logger,
		now:       time.Now,
	}
}

// Upload validates every part, then stores them concurrently. The first
// failure cancels the remaining uploads and removes the ones that finished.
func (s *uploadService) Upload(ctx context.Context, parts []Part, rules []FieldRule, opts UploadOptions) (*UploadResult, error) {
	validated, err := s.validator.Validate(parts, rules)
	if err != nil {
		return nil, err
	}

	result := &UploadResult{Files: make(map[string][]StoredFile)}
	if len(validated) == 0 {
		return result, nil
	}

	now := s.now().UTC()
	stored := make([]StoredFile, len(validated))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	for i, vp := range validated {
		key := storage.NewKey(opts.Prefix+"/"+vp.Field, vp.Filename, now)
		g.Go(func() error {
			url, err := s.store.Put(gctx, key, vp.contentType, bytes.NewReader(vp.data), int64(len(vp.data)))
			if err != nil {
				return fmt.Errorf("%w: store %s: %v", errors.ErrUpstream, vp.Filename, err)
			}
			stored[i] = StoredFile{
				Field:       vp.Field,
				Filename:    vp.Filename,
				Key:         key,
				URL:         url,
				ContentType: vp.contentType,
				Size:        int64(len(vp.data)),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.remove(ctx, stored)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("upload failed, stored files removed", zap.Error(err), zap.Int("files", len(validated)))
		return nil, err
	}

	for _, f := range stored {
		result.Files[f.Field] = append(result.Files[f.Field], f)
	}

	if opts.ThumbnailField != "" {
		for _, vp := range validated {
			if vp.Field == opts.ThumbnailField {
				result.Thumbnail = s.thumbnail(ctx, vp, opts.Prefix, now)
				break
			}
		}
	}

	return result, nil
}

// thumbnail stores a resized copy of an image. Failure is logged and ignored.
func (s *uploadService) thumbnail(ctx context.Context, vp validatedPart, prefix string, now time.Time) *StoredFile {
	img, err := imaging.Decode(bytes.NewReader(vp.data), imaging.AutoOrientation(true))
	if err != nil {
		s.logger.Debug("thumbnail skipped", zap.String("file", vp.Filename), zap.Error(err))
		return nil
	}

	var buf bytes.Buffer
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		s.logger.Warn("encode thumbnail", zap.String("file", vp.Filename), zap.Error(err))
		return nil
	}

	key := storage.NewKey(prefix+"/thumbnails", vp.Filename+".jpg", now)
	size := int64(buf.Len())
	url, err := s.store.Put(ctx, key, "image/jpeg", &buf, size)
	if err != nil {
		s.logger.Warn("store thumbnail", zap.String("file", vp.Filename), zap.Error(err))
		return nil
	}
	return &StoredFile{Field: "thumbnail", Filename: vp.Filename, Key: key, URL: url, ContentType: "image/jpeg", Size: size}
}

// Discard removes every file of result, best effort.
func (s *uploadService) Discard(ctx context.Context, result *UploadResult) {
	if result == nil {
		return
	}
	var files []StoredFile
	for _, fs := range result.Files {
		files = append(files, fs...)
	}
	if result.Thumbnail != nil {
		files = append(files, *result.Thumbnail)
	}
	s.remove(ctx, files)
}

func (s *uploadService) remove(ctx context.Context, files []StoredFile) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, f := range files {
		if f.Key == "" {
			continue
		}
		if err := s.store.Delete(ctx, f.Key); err != nil {
			s.logger.Warn("remove orphaned upload", zap.String("key", f.Key), zap.Error(err))
		}
	}
}
