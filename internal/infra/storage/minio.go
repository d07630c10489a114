package storage

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bryanwahyu/mlr-studio/internal/domain/images"
)

type MinioStore struct {
	client     *minio.Client
	bucketName string
	region     string
}

// NewMinio buat koneksi MinIO dan pastikan bucket ada
func NewMinio(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	s, err := newMinioStore(endpoint, region, bucket, accessKey, secretKey, useSSL)
	if err != nil {
		return nil, err
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newMinioStore(endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}
	return &MinioStore{client: cli, bucketName: bucket, region: region}, nil
}

func (s *MinioStore) Bucket() string { return s.bucketName }

// PresignPut signs a PUT that must carry the given Content-Type.
func (s *MinioStore) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucketName, key, ttl, url.Values{}, h)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *MinioStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, ttl, url.Values{})
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *MinioStore) List(ctx context.Context, prefix string) ([]images.ObjectInfo, error) {
	var out []images.ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		out = append(out, images.ObjectInfo{Key: obj.Key, LastModified: obj.LastModified})
	}
	return out, nil
}

// Delete removes the object behind any supported locator of this bucket.
func (s *MinioStore) Delete(ctx context.Context, locator string) error {
	key, err := ownKey(s.bucketName, locator)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
}

// Check implements middleware.HealthChecker.
func (s *MinioStore) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucketName)
	}
	return nil
}

func ownKey(bucket, locator string) (string, error) {
	loc, err := images.ParseLocator(locator)
	if err != nil {
		return "", err
	}
	if loc.Bucket != bucket {
		return "", fmt.Errorf("%w: bucket %s is not %s", images.ErrUnresolvableLocator, loc.Bucket, bucket)
	}
	return loc.Key, nil
}
