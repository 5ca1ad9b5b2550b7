package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/assets"
	"certificate-studio/generator-backend/pkg/storage"
)

// ErrNothingToPublish is returned for results without a PDF.
var ErrNothingToPublish = errors.New("generation result has no pdf")

// Publisher stores generated certificates in object storage under
// certificates/<code>/<file name>.
type Publisher struct {
	client    storage.S3Client
	bucket    string
	urlExpiry time.Duration
	logger    *zap.Logger
}

// NewPublisher creates a publisher. A zero urlExpiry means one day.
func NewPublisher(client storage.S3Client, bucket string, urlExpiry time.Duration, logger *zap.Logger) *Publisher {
	if urlExpiry <= 0 {
		urlExpiry = 24 * time.Hour
	}
	return &Publisher{
		client:    client,
		bucket:    bucket,
		urlExpiry: urlExpiry,
		logger:    logger,
	}
}

// Key returns the object key a result is stored under.
func Key(result *GenerationResult) (string, error) {
	prefix, err := assets.CertificatePrefix(result.Code)
	if err != nil {
		return "", err
	}
	return prefix + result.FileName, nil
}

// Publish uploads result and returns a presigned download URL, which is
// also recorded on the result.
func (p *Publisher) Publish(ctx context.Context, result *GenerationResult) (string, error) {
	if result == nil || len(result.PDF) == 0 {
		return "", ErrNothingToPublish
	}
	key, err := Key(result)
	if err != nil {
		return "", err
	}

	if err := p.client.Upload(ctx, p.bucket, key, "application/pdf", bytes.NewReader(result.PDF)); err != nil {
		return "", fmt.Errorf("failed to publish certificate: %w", err)
	}

	url, err := p.client.GetPresignedURL(ctx, p.bucket, key, p.urlExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to sign certificate url: %w", err)
	}
	result.URL = url

	p.logger.Info("Published certificate",
		zap.String("certificate_code", result.Code),
		zap.String("bucket", p.bucket),
		zap.String("key", key),
	)
	return url, nil
}
