package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"nebula/nebula/config"
	"nebula/nebula/utils/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Relay uploads through the AWS SDK. A base endpoint points it at any
// S3-compatible store.
type S3Relay struct {
	client    s3PutAPI
	bucket    string
	publicURL string
}

func NewS3Relay(ctx context.Context, cfg config.Config) (*S3Relay, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := cfg.StoragePublicURL
	if publicURL == "" {
		if cfg.S3Endpoint != "" {
			publicURL = PublicURL(cfg.S3Endpoint, cfg.S3Bucket)
		} else {
			publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
		}
	}
	return &S3Relay{client: client, bucket: cfg.S3Bucket, publicURL: publicURL}, nil
}

func (s *S3Relay) Store(ctx context.Context, data []byte, mediaType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyAttachment
	}
	defer logging.LogDuration(ctx, "S3Relay.Store")()

	key := ObjectKey(time.Now(), mediaType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(mediaType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return PublicURL(s.publicURL, key), nil
}
