// Package imagestore holds profile, cover and message images in an
// S3-compatible object store. Objects are keyed by folder and id; the
// public URL is derived from the endpoint and bucket.
package imagestore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"murmur.dev/internal/ids"
)

// Object identifies a stored image.
type Object struct {
	ID  string
	URL string
}

// Store is the object-storage contract used by the user and message
// handlers.
type Store interface {
	Upload(ctx context.Context, folder string, r io.Reader, size int64, contentType string) (Object, error)
	Destroy(ctx context.Context, id string) error
	DestroyFolder(ctx context.Context, folder string) error
}

// Config carries the object-store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIO implements Store on a MinIO (or any S3-compatible) server.
type MinIO struct {
	mc     *minio.Client
	bucket string
	base   string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg Config) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("imagestore: endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("imagestore: access and secret keys are required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("imagestore: client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "murmur"
	}
	exists, err := mc.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("imagestore: check bucket: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("imagestore: create bucket: %w", err)
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinIO{
		mc:     mc,
		bucket: bucket,
		base:   fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, bucket),
	}, nil
}

// Upload stores an image under folder with a fresh id and returns its
// public reference.
func (m *MinIO) Upload(ctx context.Context, folder string, r io.Reader, size int64, contentType string) (Object, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	id := path.Join(folder, ids.New())
	_, err := m.mc.PutObject(ctx, m.bucket, id, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Object{}, fmt.Errorf("imagestore: upload %s: %w", id, err)
	}
	return Object{ID: id, URL: m.base + "/" + id}, nil
}

// Destroy removes a single object. Missing objects are not an error.
func (m *MinIO) Destroy(ctx context.Context, id string) error {
	return m.mc.RemoveObject(ctx, m.bucket, id, minio.RemoveObjectOptions{})
}

// DestroyFolder removes every object under the folder prefix. Used when an
// account is permanently deleted.
func (m *MinIO) DestroyFolder(ctx context.Context, folder string) error {
	prefix := strings.TrimSuffix(folder, "/") + "/"
	objects := m.mc.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return fmt.Errorf("imagestore: list %s: %w", prefix, obj.Err)
		}
		if err := m.mc.RemoveObject(ctx, m.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("imagestore: remove %s: %w", obj.Key, err)
		}
	}
	return nil
}

// Discard is a Store that accepts uploads without persisting anything.
// Used when no object store is configured and by tests.
type Discard struct{}

func (Discard) Upload(_ context.Context, folder string, r io.Reader, _ int64, _ string) (Object, error) {
	// Drain so multipart readers complete.
	_, _ = io.Copy(io.Discard, r)
	id := path.Join(folder, ids.New())
	return Object{ID: id, URL: "about:blank#" + id}, nil
}

func (Discard) Destroy(context.Context, string) error       { return nil }
func (Discard) DestroyFolder(context.Context, string) error { return nil }
