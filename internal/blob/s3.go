package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the S3-compatible backend.
type S3Options struct {
	Bucket        string
	Region        string
	Endpoint      string
	PathStyle     bool
	PublicBaseURL string
	// AccessKey and SecretKey override the SDK credential chain when both are set.
	AccessKey string
	SecretKey string
}

// S3 stores objects in an S3-compatible bucket.
type S3 struct {
	client *s3.Client
	opts   S3Options
}

// NewS3 builds a client using the default AWS configuration chain.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	opts.Bucket = strings.TrimSpace(opts.Bucket)
	if opts.Bucket == "" {
		return nil, errors.New("s3 storage: bucket required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &S3{client: client, opts: opts}, nil
}

// Name identifies the backend in logs and metrics.
func (s *S3) Name() string { return "s3" }

// Write uploads body with PutObject.
func (s *S3) Write(ctx context.Context, key, contentType string, body io.ReadSeeker, size int64) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if strings.HasSuffix(key, ".m3u8") {
		input.CacheControl = aws.String("no-cache")
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket exists and the credentials can reach it.
func (s *S3) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w", s.opts.Bucket, err)
	}
	return nil
}

// URL returns the public URL for key. A configured public base wins; then
// the custom endpoint; then the regional AWS virtual-hosted URL.
func (s *S3) URL(key string) string {
	if s.opts.PublicBaseURL != "" {
		return joinURL(s.opts.PublicBaseURL, key)
	}
	escaped := escapeKey(key)
	if s.opts.Endpoint != "" {
		base := strings.TrimRight(s.opts.Endpoint, "/")
		if s.opts.PathStyle {
			return base + "/" + s.opts.Bucket + "/" + escaped
		}
		if parsed, err := url.Parse(base); err == nil && parsed.Host != "" {
			parsed.Host = s.opts.Bucket + "." + parsed.Host
			return strings.TrimRight(parsed.String(), "/") + "/" + escaped
		}
		return base + "/" + s.opts.Bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, escaped)
}

func escapeKey(key string) string {
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
