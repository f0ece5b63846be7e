package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"exam_review_backend/config"
)

// Object is a bucket entry listed under a folder. Name is relative to the folder.
type Object struct {
	Name string
	Size int64
}

// Bucket is the subset of an object store the page resolver needs.
type Bucket interface {
	List(ctx context.Context, folder string, limit int) ([]Object, error)
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// New builds the bucket for the configured driver.
func New(cfg config.StorageConfig) (Bucket, error) {
	switch cfg.Driver {
	case "minio":
		return NewMinioBucket(cfg)
	case "oss":
		return NewOSSBucket(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func folderPrefix(folder string) string {
	return strings.TrimSuffix(folder, "/") + "/"
}

// relativeName strips the folder prefix from key. ok is false for the folder
// placeholder itself and for nested directory markers.
func relativeName(prefix, key string, size int64) (string, bool) {
	name := strings.TrimPrefix(key, prefix)
	if name == "" {
		return "", false
	}
	if strings.HasSuffix(name, "/") && size == 0 {
		return "", false
	}
	return name, true
}

func validKey(key string) error {
	if key == "" || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object name %q", key)
	}
	return nil
}
