package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"certificate-studio/generator-backend/internal/certificates"
)

// Sink stores generated certificates and returns where each one went.
type Sink interface {
	Put(ctx context.Context, result *certificates.GenerationResult) (string, error)
}

// DirSink writes certificates into Dir as <code>-<file name>, so rows with
// the same recipient name do not overwrite each other.
type DirSink struct {
	Dir string
}

// Put writes result to disk.
func (s *DirSink) Put(ctx context.Context, result *certificates.GenerationResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(s.Dir, result.Code+"-"+result.FileName)
	if err := os.WriteFile(path, result.PDF, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// PublisherSink uploads certificates to object storage and records the
// presigned URL.
type PublisherSink struct {
	Publisher *certificates.Publisher
}

// Put uploads result.
func (s *PublisherSink) Put(ctx context.Context, result *certificates.GenerationResult) (string, error) {
	return s.Publisher.Publish(ctx, result)
}
