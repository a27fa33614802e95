// Package storage uploads export artifacts to object storage.
//
// Storage is optional. When no bucket or credentials are configured the
// gateway reports ErrNotConfigured and callers keep artifacts on local disk.
package storage

import (
	"context"
	stderrors "errors"

	"github.com/reportgate/reportgate/internal/config"
)

// ErrNotConfigured is returned by a gateway that has no backing bucket
var ErrNotConfigured = stderrors.New("object storage is not configured")

// Gateway uploads and removes artifacts in object storage
type Gateway interface {
	// Upload stores the file at localPath under key and returns its public URL
	Upload(ctx context.Context, localPath, key, contentType string) (*UploadResult, error)
	// Delete removes key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// Configured reports whether uploads can succeed at all
	Configured() bool
}

// UploadResult describes an uploaded object
type UploadResult struct {
	Key  string
	URL  string
	Size int64
}

// New returns an S3 gateway when cfg is complete, otherwise a gateway that
// is not configured.
func New(ctx context.Context, cfg config.StorageConfig) (Gateway, error) {
	if !cfg.Configured() {
		return NotConfigured{}, nil
	}
	return NewS3Gateway(ctx, cfg)
}

// NotConfigured is the gateway used when storage settings are absent
type NotConfigured struct{}

// Upload implements Gateway
func (NotConfigured) Upload(context.Context, string, string, string) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

// Delete implements Gateway
func (NotConfigured) Delete(context.Context, string) error {
	return ErrNotConfigured
}

// Configured implements Gateway
func (NotConfigured) Configured() bool { return false }
