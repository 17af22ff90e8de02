// Package blobstore adapts an S3-compatible object store for idempotent
// document blob storage. Access control is never consulted here; it
// lives entirely on the document record.
package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/northbound-policy/ingest/internal/apperr"
)

// Config configures the underlying S3-compatible endpoint.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	PublicURL string // prefix prepended to canonical names to form a public URL
}

// Store uploads, checks existence, and deletes blobs by canonical name.
type Store struct {
	client *minio.Client
	bucket string
	public string
}

// New builds a Store and ensures the configured bucket exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to construct object store client")
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to check bucket existence")
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to create bucket")
		}
	}

	return &Store{client: client, bucket: cfg.Bucket, public: cfg.PublicURL}, nil
}

// Upload stores data under canonicalName, overwriting any existing object
// of the same name (idempotent by name).
func (s *Store) Upload(ctx context.Context, canonicalName string, data []byte, contentType string) (string, error) {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, canonicalName, reader, int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", apperr.Wrap(apperr.KindIndexFailure, err, "failed to upload blob")
	}
	return s.publicURL(canonicalName), nil
}

// Exists reports whether an object is present under canonicalName.
func (s *Store) Exists(ctx context.Context, canonicalName string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, canonicalName, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
		return false, nil
	}
	return false, apperr.Wrap(apperr.KindIndexFailure, err, "failed to stat blob")
}

// Download retrieves an object's full contents, used to re-read the
// extracted-text companion blob for lazy embedding.
func (s *Store) Download(ctx context.Context, canonicalName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, canonicalName, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to open blob")
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to read blob")
	}
	return data, nil
}

// Delete removes an object. Deleting a non-existent object is not an
// error, matching the idempotent-by-name contract.
func (s *Store) Delete(ctx context.Context, canonicalName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, canonicalName, minio.RemoveObjectOptions{}); err != nil {
		return apperr.Wrap(apperr.KindIndexFailure, err, "failed to delete blob")
	}
	return nil
}

func (s *Store) publicURL(canonicalName string) string {
	if s.public != "" {
		return fmt.Sprintf("%s/%s", s.public, canonicalName)
	}
	return fmt.Sprintf("%s/%s", s.bucket, canonicalName)
}
