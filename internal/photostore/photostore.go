// Package photostore wraps MinIO/S3 interactions for archived record photos.
package photostore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/CrimeVault/internal/config"
)

const uriScheme = "s3://"

// Storage holds the MinIO client and the photo bucket.
type Storage struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{client: client, bucket: cfg.PhotoBucket, region: cfg.S3Region}, nil
}

// EnsureBucket makes sure the photo bucket exists before use.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Archive uploads a local photo file and returns the s3:// reference stored
// back onto the record.
func (s *Storage) Archive(ctx context.Context, objectKey, localPath string) (string, error) {
	opts := minio.PutObjectOptions{ContentType: ContentTypeFor(localPath)}
	if _, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, opts); err != nil {
		return "", fmt.Errorf("archive photo: %w", err)
	}
	return uriScheme + s.bucket + "/" + objectKey, nil
}

// Fetch downloads an archived photo by object key.
func (s *Storage) Fetch(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get photo object: %w", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read photo object: %w", err)
	}
	return data, nil
}

// ObjectKeyFor derives a deterministic object key for a record's photo.
func ObjectKeyFor(recordID, localPath string) string {
	ext := filepath.Ext(localPath)
	if ext == "" {
		ext = ".jpg"
	}
	return "photos/" + recordID + ext
}

// IsArchivedRef reports whether a photo path already points into object
// storage rather than the local filesystem.
func IsArchivedRef(photoPath string) bool {
	return strings.HasPrefix(photoPath, uriScheme)
}

// ObjectKeyFromRef strips the scheme and bucket from an s3:// reference.
func ObjectKeyFromRef(ref string) string {
	trimmed := strings.TrimPrefix(ref, uriScheme)
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// ContentTypeFor maps a photo's file extension to its MIME type. It works on
// local paths and archived object references alike.
func ContentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
