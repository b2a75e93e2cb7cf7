package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"nebula/nebula/config"
	"nebula/nebula/utils/logging"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type MinIORelay struct {
	client    objectPutter
	bucket    string
	publicURL string
}

func NewMinIORelay(ctx context.Context, cfg config.Config) (*MinIORelay, error) {
	bucket := cfg.MinIOBucket
	client, err := minio.New(
		cfg.MinIOEndpoint,
		&minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIOAccessKey, cfg.MinIOSecretKey, ""),
			Secure: cfg.MinIOSecure,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	// Create bucket if not exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
		logging.AppLogger.Info("created bucket", zap.String("bucket", bucket))
	}

	publicURL := cfg.StoragePublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.MinIOSecure {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.MinIOEndpoint, bucket)
	}
	return &MinIORelay{client: client, bucket: bucket, publicURL: publicURL}, nil
}

func (m *MinIORelay) Store(ctx context.Context, data []byte, mediaType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyAttachment
	}
	defer logging.LogDuration(ctx, "MinIORelay.Store")()

	key := ObjectKey(time.Now(), mediaType)
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: mediaType})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return PublicURL(m.publicURL, key), nil
}
