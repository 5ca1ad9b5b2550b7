package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"certificate-studio/generator-backend/pkg/storage"
)

// ErrInvalidCode is returned for certificate codes that are not safe to use
// as a path segment.
var ErrInvalidCode = errors.New("invalid certificate code")

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// CertificatePrefix returns the storage prefix holding files for code,
// "certificates/<code>/".
func CertificatePrefix(code string) (string, error) {
	if !codePattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return "certificates/" + code + "/", nil
}

// FileLister lists the source files associated with a certificate code.
type FileLister interface {
	ListFiles(ctx context.Context, code string) ([]string, error)
}

// LocalLister lists files under <Root>/certificates/<code>/.
type LocalLister struct {
	Root string
}

// ListFiles returns the sorted names of regular files stored for code. A
// missing directory yields no files.
func (l *LocalLister) ListFiles(ctx context.Context, code string) ([]string, error) {
	prefix, err := CertificatePrefix(code)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(l.Root, filepath.FromSlash(prefix)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list files for %s: %w", code, err)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// S3Lister lists objects under certificates/<code>/ in Bucket.
type S3Lister struct {
	Client storage.S3Client
	Bucket string
}

// ListFiles returns the sorted base names of the objects stored for code.
func (l *S3Lister) ListFiles(ctx context.Context, code string) ([]string, error) {
	prefix, err := CertificatePrefix(code)
	if err != nil {
		return nil, err
	}

	keys, err := l.Client.List(ctx, l.Bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list files for %s: %w", code, err)
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}
		names = append(names, path.Base(key))
	}
	sort.Strings(names)
	return names, nil
}
