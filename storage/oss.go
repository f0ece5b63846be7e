package storage

import (
	"context"
	"fmt"
	"time"

	"exam_review_backend/config"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSBucket serves exam pages from Aliyun OSS.
type OSSBucket struct {
	bucket *oss.Bucket
}

func NewOSSBucket(cfg config.StorageConfig) (*OSSBucket, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get OSS bucket %s: %w", cfg.Bucket, err)
	}
	return &OSSBucket{bucket: bucket}, nil
}

// List issues a single ListObjects call; the SDK has no context support.
func (b *OSSBucket) List(_ context.Context, folder string, limit int) ([]Object, error) {
	prefix := folderPrefix(folder)
	options := []oss.Option{oss.Prefix(prefix)}
	if limit > 0 {
		options = append(options, oss.MaxKeys(limit))
	}

	res, err := b.bucket.ListObjects(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, err)
	}

	objects := make([]Object, 0, len(res.Objects))
	for _, object := range res.Objects {
		name, ok := relativeName(prefix, object.Key, object.Size)
		if !ok {
			continue
		}
		objects = append(objects, Object{Name: name, Size: object.Size})
	}
	return objects, nil
}

func (b *OSSBucket) SignedURL(_ context.Context, key string, expiry time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	signed, err := b.bucket.SignURL(key, oss.HTTPGet, int64(expiry/time.Second))
	if err != nil {
		return "", fmt.Errorf("failed to sign URL for %s: %w", key, err)
	}
	return signed, nil
}
