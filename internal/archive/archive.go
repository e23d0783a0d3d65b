// Package archive uploads backup documents to an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"partlife-backend/config"
)

// ErrNotConfigured is returned when no bucket is configured.
var ErrNotConfigured = errors.New("backup archive is not configured")

// Archiver writes objects under a key prefix of one bucket.
type Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	log    *zap.Logger
}

// New builds an Archiver from cfg. optFns are applied to the S3 client
// options after the configured endpoint.
func New(ctx context.Context, cfg config.ArchiveConfig, log *zap.Logger, optFns ...func(*s3.Options)) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}}, optFns...)...)

	return &Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, log: log}, nil
}

// Put stores body under prefix/name and returns the object key.
func (a *Archiver) Put(ctx context.Context, name string, body []byte) (string, error) {
	key := path.Join(a.prefix, name)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	a.log.Info("backup archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)),
	)
	return key, nil
}
