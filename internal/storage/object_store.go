package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"demodrop/internal/config"
	"demodrop/internal/services"
)

// ObjectStore stores assets in an S3-compatible bucket via the MinIO client.
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to the configured S3-compatible endpoint.
func NewObjectStore(cfg config.Storage) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "connect", cfg.Endpoint, err)
	}
	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// Store uploads an object and returns its bucket-qualified location.
func (s *ObjectStore) Store(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "store", "empty key", nil)
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{})
	if err != nil {
		return "", services.Wrap(services.ErrExternalService, "storage", "store", key, err)
	}
	return s.bucket + "/" + key, nil
}

// Fetch downloads the object at a bucket-qualified location.
func (s *ObjectStore) Fetch(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := splitLocation(location)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "storage", "fetch", location, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, location)
		}
		return nil, services.Wrap(services.ErrExternalService, "storage", "fetch", location, err)
	}
	return data, nil
}

func splitLocation(location string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(strings.TrimSpace(location), "/")
	if !ok || bucket == "" || key == "" {
		return "", "", services.Wrap(services.ErrValidation, "storage", "fetch", "malformed location "+location, nil)
	}
	return bucket, key, nil
}
