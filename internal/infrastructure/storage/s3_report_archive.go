// Package storage archives billing run reports to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	appbilling "github.com/academy/feebilling/internal/application/billing"
	infraconfig "github.com/academy/feebilling/internal/infrastructure/config"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// ReportContentType is the content type of archived run reports
const ReportContentType = "application/json"

// S3API is the subset of the S3 client the archive needs
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3ReportArchive stores each billing run result as a JSON object.
// It works with AWS S3 and S3-compatible servers such as MinIO.
type S3ReportArchive struct {
	client S3API
	bucket string
	prefix string
	logger *zap.Logger
}

// S3ReportArchiveOption is a functional option for configuring S3ReportArchive
type S3ReportArchiveOption func(*S3ReportArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3ReportArchiveOption {
	return func(a *S3ReportArchive) {
		a.logger = logger
	}
}

// WithClient replaces the S3 client built from configuration
func WithClient(client S3API) S3ReportArchiveOption {
	return func(a *S3ReportArchive) {
		a.client = client
	}
}

// NewS3ReportArchive creates an archive from configuration
func NewS3ReportArchive(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...S3ReportArchiveOption) (*S3ReportArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	archive := &S3ReportArchive{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	if archive.client != nil {
		return archive, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	archive.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return archive, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *S3ReportArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating report bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// ReportKey returns the object key for a run: <prefix>/billing-runs/<YYYY-MM>/<run_id>.json
func (a *S3ReportArchive) ReportKey(result *appbilling.BillingRunResult) string {
	return path.Join(a.prefix, "billing-runs", result.MonthYear, result.RunID.String()+".json")
}

// StoreRunReport uploads the run result as JSON
func (a *S3ReportArchive) StoreRunReport(ctx context.Context, result *appbilling.BillingRunResult) error {
	if result == nil {
		return errors.New("run result is required")
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}

	key := a.ReportKey(result)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(ReportContentType),
		Metadata: map[string]string{
			"run-id":     result.RunID.String(),
			"month-year": result.MonthYear,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload run report %s: %w", key, err)
	}

	a.logger.Debug("Run report archived",
		zap.String("bucket", a.bucket),
		zap.String("key", key),
	)
	return nil
}

// Bucket returns the bucket name
func (a *S3ReportArchive) Bucket() string {
	return a.bucket
}

var _ appbilling.RunReportArchive = (*S3ReportArchive)(nil)
