package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dealdocs/engine/pkg/config"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PDFContentType is the content type of every generated document.
const PDFContentType = "application/pdf"

// BlobStore is the object storage the pipeline reads templates from and writes documents to.
type BlobStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	PutObject(ctx context.Context, key string, data []byte, contentType string) error
	RemoveObject(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// MinioStore is a BlobStore on a single MinIO/S3 bucket. Every call runs under
// the configured storage timeout.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	timeout time.Duration
	expiry  time.Duration
}

var _ BlobStore = (*MinioStore)(nil)

// Options configures a MinioStore.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	Timeout   time.Duration
	Expiry    time.Duration
}

// OptionsFromConfig maps the loaded configuration onto store options.
func OptionsFromConfig(c *config.Config) Options {
	return Options{
		Endpoint:  c.MinioEndpoint,
		AccessKey: c.MinioAccessKey,
		SecretKey: c.MinioSecretKey,
		Bucket:    c.MinioBucket,
		UseSSL:    c.MinioUseSSL,
		Timeout:   c.StorageTimeout,
		Expiry:    c.PresignExpiry,
	}
}

func NewMinioStore(opts Options) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &MinioStore{client: client, bucket: opts.Bucket, timeout: opts.Timeout, expiry: opts.Expiry}, nil
}

func (s *MinioStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (s *MinioStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return data, nil
}

func (s *MinioStore) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

func (s *MinioStore) RemoveObject(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PresignedURL returns a time-limited download URL for key.
func (s *MinioStore) PresignedURL(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

// DocumentKey is the object key of a generated document:
// {dealership}/deals/{deal}/documents/{document}.pdf
func DocumentKey(dealershipID, dealID, documentID uuid.UUID) string {
	return fmt.Sprintf("%s/deals/%s/documents/%s.pdf", dealershipID, dealID, documentID)
}
