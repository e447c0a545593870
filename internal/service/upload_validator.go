package service

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"maskan/internal/errors"
)

// Part is one file from a multipart request.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FieldRule constrains the files accepted under one form field.
type FieldRule struct {
	Field string
	Min   int
	Max   int
	// Accept lists allowed content types. Entries ending in "/" match a
	// whole family, e.g. "image/".
	Accept []string
}

func (r FieldRule) accepts(contentType string) bool {
	for _, a := range r.Accept {
		if strings.HasSuffix(a, "/") && strings.HasPrefix(contentType, a) {
			return true
		}
		if a == contentType {
			return true
		}
	}
	return false
}

var (
	acceptImages      = []string{"image/"}
	acceptPDF         = []string{"application/pdf"}
	acceptImageOrPDF  = []string{"image/", "application/pdf"}
	genericBinaryType = "application/octet-stream"
)

// ListingUploadRules returns the file rules for listings. Creation requires at
// least one image.
func ListingUploadRules(maxImages int, requireImage bool) []FieldRule {
	minImages := 0
	if requireImage {
		minImages = 1
	}
	return []FieldRule{
		{Field: "images", Min: minImages, Max: maxImages, Accept: acceptImages},
		{Field: "pdf", Max: 1, Accept: acceptPDF},
	}
}

// AgentUploadRules returns the file rules for agent profiles.
func AgentUploadRules() []FieldRule {
	return []FieldRule{{Field: "profilePhoto", Max: 1, Accept: acceptImages}}
}

// BrokerUploadRules returns the file rules for broker profiles.
func BrokerUploadRules() []FieldRule {
	return []FieldRule{{Field: "reraIDCard", Min: 1, Max: 1, Accept: acceptImageOrPDF}}
}

type validatedPart struct {
	Part
	contentType string
	data        []byte
}

// UploadValidator checks file parts against field rules. It reads each part
// into memory to sniff its real content type, so nothing reaches the object
// store until every part has passed.
type UploadValidator struct {
	maxFileSize int64
}

// NewUploadValidator creates a new upload validator.
func NewUploadValidator(maxFileSize int64) *UploadValidator {
	return &UploadValidator{maxFileSize: maxFileSize}
}

// Validate returns the accepted parts in request order or an
// ErrUploadRejected describing the first problem.
func (v *UploadValidator) Validate(parts []Part, rules []FieldRule) ([]validatedPart, error) {
	byField := make(map[string]FieldRule, len(rules))
	counts := make(map[string]int, len(rules))
	for _, r := range rules {
		byField[r.Field] = r
	}

	for _, p := range parts {
		if _, ok := byField[p.Field]; !ok {
			return nil, errors.UploadRejected("unexpected file field %q", p.Field)
		}
		counts[p.Field]++
	}
	for _, r := range rules {
		if counts[r.Field] < r.Min {
			return nil, errors.UploadRejected("%s: at least %d file(s) required", r.Field, r.Min)
		}
		if counts[r.Field] > r.Max {
			return nil, errors.UploadRejected("%s: at most %d file(s) allowed", r.Field, r.Max)
		}
	}

	out := make([]validatedPart, 0, len(parts))
	for _, p := range parts {
		vp, err := v.validatePart(p, byField[p.Field])
		if err != nil {
			return nil, err
		}
		out = append(out, vp)
	}
	return out, nil
}

func (v *UploadValidator) validatePart(p Part, rule FieldRule) (validatedPart, error) {
	if p.Size > v.maxFileSize {
		return validatedPart{}, errors.UploadRejected("%s exceeds the %d byte limit", p.Filename, v.maxFileSize)
	}

	declared := normalizeContentType(p.ContentType)
	if declared != "" && declared != genericBinaryType && !rule.accepts(declared) {
		return validatedPart{}, errors.UploadRejected("%s: content type %s is not allowed for %s", p.Filename, declared, rule.Field)
	}

	data, err := readLimited(p, v.maxFileSize)
	if err != nil {
		return validatedPart{}, err
	}
	if len(data) == 0 {
		return validatedPart{}, errors.UploadRejected("%s is empty", p.Filename)
	}

	sniffed := normalizeContentType(mimetype.Detect(data).String())
	if !rule.accepts(sniffed) {
		return validatedPart{}, errors.UploadRejected("%s: content does not match an allowed type for %s", p.Filename, rule.Field)
	}

	contentType := declared
	if contentType == "" || contentType == genericBinaryType {
		contentType = sniffed
	}
	return validatedPart{Part: p, contentType: contentType, data: data}, nil
}

func readLimited(p Part, limit int64) ([]byte, error) {
	if p.Open == nil {
		return nil, errors.UploadRejected("%s has no content", p.Filename)
	}
	rc, err := p.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.Filename, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Filename, err)
	}
	if int64(len(data)) > limit {
		return nil, errors.UploadRejected("%s exceeds the %d byte limit", p.Filename, limit)
	}
	return data, nil
}

func normalizeContentType(ct string) string {
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mediaType
}
