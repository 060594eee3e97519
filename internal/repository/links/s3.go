// Package links resolves passage object keys to time-limited document URLs.
package links

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/BrennenFa/ChatEpstein/internal/domain"
	"github.com/BrennenFa/ChatEpstein/internal/metrics"
)

// S3Resolver presigns GET URLs for document objects. Link resolution is
// best-effort: any failure yields domain.LinkUnavailable, never an error, so a
// broken storage config cannot fail a chat turn.
type S3Resolver struct {
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
	logger    *zap.Logger
}

// NewS3Resolver creates a resolver over the given S3 client.
func NewS3Resolver(client *s3.Client, bucket string, expiry time.Duration, logger *zap.Logger) *S3Resolver {
	return &S3Resolver{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		expiry:    expiry,
		logger:    logger,
	}
}

// Resolve returns a presigned URL for objectKey, or domain.LinkUnavailable.
func (r *S3Resolver) Resolve(ctx context.Context, objectKey string) string {
	if objectKey == "" {
		return domain.LinkUnavailable
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		metrics.LinkResolutionFailuresTotal.Inc()
		r.logger.Warn("Failed to presign document link",
			zap.String("object_key", objectKey), zap.Error(err))
		return domain.LinkUnavailable
	}
	return req.URL
}

// NoopResolver is used when document storage is not configured.
type NoopResolver struct{}

// Resolve always reports the link as unavailable.
func (NoopResolver) Resolve(_ context.Context, _ string) string {
	return domain.LinkUnavailable
}
