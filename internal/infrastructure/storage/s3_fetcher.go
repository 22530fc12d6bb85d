// Package storage fetches print sources from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/erp/printdispatch/internal/domain/printing"
	infraconfig "github.com/erp/printdispatch/internal/infrastructure/config"
)

// Scheme is the source prefix handled by S3SourceFetcher
const Scheme = "s3://"

var (
	// ErrInvalidURI is returned for sources that are not s3://bucket/key
	ErrInvalidURI = errors.New("invalid s3 uri")
	// ErrObjectNotFound is returned when the bucket or key does not exist
	ErrObjectNotFound = errors.New("object not found")
)

// ObjectGetter is the part of the S3 client the fetcher needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3SourceFetcher downloads s3://bucket/key sources
type S3SourceFetcher struct {
	client        ObjectGetter
	defaultBucket string
	logger        *zap.Logger
}

// S3SourceFetcherOption is a functional option for configuring S3SourceFetcher
type S3SourceFetcherOption func(*S3SourceFetcher)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3SourceFetcherOption {
	return func(f *S3SourceFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDefaultBucket sets the bucket used by s3:///key URIs
func WithDefaultBucket(bucket string) S3SourceFetcherOption {
	return func(f *S3SourceFetcher) {
		f.defaultBucket = bucket
	}
}

// NewS3SourceFetcher wraps an existing client
func NewS3SourceFetcher(client ObjectGetter, opts ...S3SourceFetcherOption) *S3SourceFetcher {
	f := &S3SourceFetcher{
		client: client,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewS3SourceFetcherFromConfig builds an S3 client from configuration. It works
// with any S3-compatible endpoint (AWS S3, MinIO, RustFS).
func NewS3SourceFetcherFromConfig(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3SourceFetcherOption) (*S3SourceFetcher, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
			return nil, errors.New("storage access key and secret key must be set together")
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return NewS3SourceFetcher(client, append([]S3SourceFetcherOption{WithDefaultBucket(cfg.Bucket)}, opts...)...), nil
}

// Handles reports whether source is an s3:// URI
func (f *S3SourceFetcher) Handles(source string) bool {
	return strings.HasPrefix(strings.ToLower(source), Scheme)
}

// Fetch streams the object named by source into dst
func (f *S3SourceFetcher) Fetch(ctx context.Context, source string, dst io.Writer) error {
	bucket, key, err := ParseS3URI(source)
	if err != nil {
		return err
	}
	if bucket == "" {
		bucket = f.defaultBucket
	}
	if bucket == "" {
		return fmt.Errorf("%w: no bucket in %q and no default bucket", ErrInvalidURI, source)
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var noSuchBucket *types.NoSuchBucket
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) || errors.As(err, &notFound) {
			return fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, bucket, key)
		}
		return fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	n, err := io.Copy(dst, out.Body)
	if err != nil {
		return fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}

	f.logger.Debug("Fetched print source",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("bytes", n),
	)
	return nil
}

// ParseS3URI splits s3://bucket/key. The bucket may be empty (s3:///key).
func ParseS3URI(source string) (bucket, key string, err error) {
	if !strings.HasPrefix(strings.ToLower(source), Scheme) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, source)
	}
	rest := source[len(Scheme):]
	bucket, key, found := strings.Cut(rest, "/")
	if !found || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: %q has no object key", ErrInvalidURI, source)
	}
	return bucket, key, nil
}

var _ printing.SourceFetcher = (*S3SourceFetcher)(nil)
