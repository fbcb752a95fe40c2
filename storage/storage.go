// Package storage keeps uploaded post images, either on a local disk or in
// an S3 compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"blogdesk/config"
)

// ImageStore saves and removes objects addressed by slash separated keys
// such as "posts/<uuid>.png".
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (ImageStore, error) {
	switch cfg.Driver {
	case "minio":
		return NewMinioStore(ctx, cfg.Minio, cfg.PublicURL)
	case "local", "":
		return NewLocalStore(afero.NewOsFs(), cfg.LocalRoot, cfg.PublicURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("empty object key")
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
