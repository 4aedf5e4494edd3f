// Package storage abstracts blob storage behind a uniform provider contract
// with local-filesystem, S3-compatible, and OpenList remote backends.
package storage

import (
	"context"
	"path"
	"strings"
	"time"
)

// Object identifies a stored blob and its metadata. Bytes are fetched on
// demand through Get, never carried here.
type Object struct {
	Key          string     `json:"key"`
	Size         int64      `json:"size,omitempty"`
	ETag         string     `json:"etag,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// Provider is the capability set every storage backend implements. Callers
// never build backend-specific paths; each provider applies its own prefixing
// rules from its config.
//
// Get and GetFileMeta report an absent key as (nil, nil), not an error.
// Delete is idempotent: deleting an absent key succeeds.
type Provider interface {
	// Create writes the blob under key, overwriting any existing object.
	Create(ctx context.Context, key string, data []byte, contentType string) (*Object, error)
	// Get returns the blob bytes, or nil without error when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the blob. Absent keys are not an error.
	Delete(ctx context.Context, key string) error
	// GetPublicURL derives a browsable URL from configured base/CDN
	// settings. Pure: no I/O, no error.
	GetPublicURL(key string) string
	// GetFileMeta returns object metadata, or nil without error when absent.
	GetFileMeta(ctx context.Context, key string) (*Object, error)
	// ListAll enumerates every object under the provider's configured root.
	ListAll(ctx context.Context) ([]Object, error)
	// ListImages is ListAll filtered to image extensions.
	ListImages(ctx context.Context) ([]Object, error)
}

// Signer is the optional signed-URL capability. Callers must type-assert
// before invoking; backends without temporary-credential support simply do
// not implement it.
type Signer interface {
	GetSignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".avif": {},
	".heic": {},
	".heif": {},
	".bmp":  {},
	".tiff": {},
}

func isImageKey(key string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(key))]
	return ok
}

func filterImages(objects []Object) []Object {
	images := make([]Object, 0, len(objects))
	for _, obj := range objects {
		if isImageKey(obj.Key) {
			images = append(images, obj)
		}
	}
	return images
}

// cleanKey normalizes a caller-supplied key to a relative slash path with no
// traversal segments.
func cleanKey(key string) string {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	return strings.TrimPrefix(cleaned, "/")
}

func joinURL(base string, parts ...string) string {
	result := strings.TrimRight(base, "/")
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		result += "/" + part
	}
	return result
}
