package storage

import (
	"context"
	"fmt"
	"time"

	"exam_review_backend/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioBucket struct {
	client *minio.Client
	bucket string
}

func NewMinioBucket(cfg config.StorageConfig) (*MinioBucket, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing MinIO client: %w", err)
	}
	return &MinioBucket{client: client, bucket: cfg.Bucket}, nil
}

// List returns up to limit objects directly under folder.
func (b *MinioBucket) List(ctx context.Context, folder string, limit int) ([]Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prefix := folderPrefix(folder)
	objectCh := b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{
		Prefix:  prefix,
		MaxKeys: limit,
	})

	var objects []Object
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects under %s: %w", prefix, object.Err)
		}
		name, ok := relativeName(prefix, object.Key, object.Size)
		if !ok {
			continue
		}
		objects = append(objects, Object{Name: name, Size: object.Size})
		if limit > 0 && len(objects) >= limit {
			break
		}
	}
	return objects, nil
}

func (b *MinioBucket) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("error generating presigned URL for %s: %w", key, err)
	}
	return u.String(), nil
}
