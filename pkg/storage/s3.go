// Package storage delivers finished archives to S3 and hands back a
// time-limited download link.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const defaultPresignExpiry = 24 * time.Hour

// Options configures the archive bucket.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	PresignExpiry   time.Duration
}

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store uploads archives and returns presigned GET URLs.
type S3Store struct {
	bucket    string
	prefix    string
	expiry    time.Duration
	uploader  uploader
	presigner presigner
	logger    *zap.Logger
}

// NewS3Client builds an S3 client from opts. Static credentials are used when
// given, otherwise the default AWS credential chain applies. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, opts Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Store creates a store writing to opts.Bucket.
func NewS3Store(ctx context.Context, opts Options, logger *zap.Logger) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	client, err := NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	return newStore(opts, manager.NewUploader(client), s3.NewPresignClient(client), logger), nil
}

func newStore(opts Options, up uploader, ps presigner, logger *zap.Logger) *S3Store {
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = defaultPresignExpiry
	}
	return &S3Store{
		bucket:    opts.Bucket,
		prefix:    strings.Trim(opts.Prefix, "/"),
		expiry:    expiry,
		uploader:  up,
		presigner: ps,
		logger:    logger,
	}
}

// Key returns the object key for name under the configured prefix.
func (s *S3Store) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads data under key and returns a presigned download URL.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	objectKey := s.Key(key)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", objectKey, err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.bucket),
		Key:                        aws.String(objectKey),
		ResponseContentDisposition: aws.String(fmt.Sprintf(`attachment; filename="%s"`, path.Base(objectKey))),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign %s: %w", objectKey, err)
	}

	s.logger.Info("archive uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", objectKey),
		zap.Int("bytes", len(data)),
	)
	return req.URL, nil
}
