package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/reportgate/reportgate/internal/config"
	"github.com/reportgate/reportgate/pkg/errors"
	"github.com/reportgate/reportgate/pkg/logger"
)

// objectAPI is the subset of the S3 client the gateway uses
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Gateway stores artifacts in AWS S3 or an S3-compatible service
type S3Gateway struct {
	client  objectAPI
	bucket  string
	baseURL string
}

// NewS3Gateway creates a gateway from storage configuration.
// For S3-compatible services set Endpoint.
func NewS3Gateway(ctx context.Context, cfg config.StorageConfig) (*S3Gateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle || cfg.Endpoint != ""
	})

	return newS3Gateway(client, cfg), nil
}

func newS3Gateway(client objectAPI, cfg config.StorageConfig) *S3Gateway {
	return &S3Gateway{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg),
	}
}

// publicBaseURL returns the prefix object keys are appended to
func publicBaseURL(cfg config.StorageConfig) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

// Configured implements Gateway
func (g *S3Gateway) Configured() bool { return true }

// URL returns the public URL of key
func (g *S3Gateway) URL(key string) string {
	return g.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Upload implements Gateway
func (g *S3Gateway) Upload(ctx context.Context, localPath, key, contentType string) (*UploadResult, error) {
	if key == "" {
		return nil, errors.ErrValidation("storage key cannot be empty")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUploadFailure, "failed to open artifact", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUploadFailure, "failed to stat artifact", err)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUploadFailure, "failed to put object", err)
	}

	logger.Debug("Artifact uploaded",
		zap.String("bucket", g.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size()),
	)

	return &UploadResult{
		Key:  key,
		URL:  g.URL(key),
		Size: info.Size(),
	}, nil
}

// Delete implements Gateway
func (g *S3Gateway) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.ErrValidation("storage key cannot be empty")
	}

	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if stderrors.As(err, &noSuchKey) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
