// Package assets resolves image references used by templates and finds the
// source files stored alongside generated certificates.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"certificate-studio/generator-backend/pkg/storage"
)

const (
	DefaultMaxBytes  = 20 << 20
	DefaultMaxPixels = 50_000_000
)

var (
	ErrUnsupportedReference = errors.New("unsupported image reference")
	ErrPathTraversal        = errors.New("path escapes asset root")
	ErrNotImage             = errors.New("content is not an image")
	ErrTooLarge             = errors.New("image too large")
	ErrHostNotAllowed       = errors.New("image host not allowed")
)

// ImageResolver turns an image reference into a decoded image.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) (image.Image, error)
}

// DecodeError reports a reference that could not be fetched or decoded.
type DecodeError struct {
	Ref string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image %s: %v", e.Ref, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ResolverOptions configures a Resolver. A zero value only accepts data
// URLs.
type ResolverOptions struct {
	// Root is the directory relative and file:// references are read from.
	// Empty disables local files.
	Root string

	// HTTPClient fetches http(s) references. When nil the resolver builds
	// one that refuses to dial private addresses unless AllowPrivateHosts is
	// set. A supplied client owns its own dialing policy.
	HTTPClient *http.Client

	// AllowedHosts limits http(s) references to these host names. Empty
	// allows any host.
	AllowedHosts []string

	// AllowPrivateHosts permits loopback, private, link-local and
	// unspecified addresses.
	AllowPrivateHosts bool

	// S3 serves s3://bucket/key references. Nil disables them.
	S3 storage.S3Client

	MaxBytes  int64
	MaxPixels int
}

// Resolver resolves data:, http(s)://, s3:// and local file references.
type Resolver struct {
	opts   ResolverOptions
	logger *zap.Logger
}

// NewResolver creates a resolver. HTTP fetching is always available; a nil
// HTTPClient means a guarded client with a 30 second timeout.
func NewResolver(opts ResolverOptions, logger *zap.Logger) *Resolver {
	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClient(opts.AllowPrivateHosts)
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{opts: opts, logger: logger}
}

// Resolve fetches and decodes ref. Every failure is a *DecodeError.
func (r *Resolver) Resolve(ctx context.Context, ref string) (image.Image, error) {
	data, err := r.fetch(ctx, ref)
	if err != nil {
		return nil, &DecodeError{Ref: Redact(ref), Err: err}
	}

	img, err := r.decode(data)
	if err != nil {
		return nil, &DecodeError{Ref: Redact(ref), Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &DecodeError{Ref: Redact(ref), Err: err}
	}

	r.logger.Debug("Resolved image",
		zap.String("ref", Redact(ref)),
		zap.Int("bytes", len(data)),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
	return img, nil
}

func (r *Resolver) fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lower := strings.ToLower(ref)
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty reference", ErrUnsupportedReference)
	case strings.HasPrefix(lower, "data:"):
		du, err := dataurl.DecodeString(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid data url: %w", err)
		}
		return du.Data, nil
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return r.fetchHTTP(ctx, ref)
	case strings.HasPrefix(lower, "s3://"):
		return r.fetchS3(ctx, ref)
	case strings.HasPrefix(lower, "file://"):
		return r.readLocal(ref[len("file://"):])
	case strings.Contains(ref, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedReference, ref[:strings.Index(ref, "://")])
	default:
		return r.readLocal(ref)
	}
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if err := r.checkHost(req.URL); err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: unexpected status %d", resp.StatusCode)
	}
	return r.readLimited(resp.Body)
}

// checkHost applies AllowedHosts and rejects private IP literals. Names
// that resolve to private addresses are stopped when the guarded client
// dials.
func (r *Resolver) checkHost(u *url.URL) error {
	host := u.Hostname()
	if len(r.opts.AllowedHosts) > 0 && !slices.ContainsFunc(r.opts.AllowedHosts, func(h string) bool {
		return strings.EqualFold(h, host)
	}) {
		return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
	}
	if !r.opts.AllowPrivateHosts {
		if addr, err := netip.ParseAddr(host); err == nil && isPrivateAddr(addr) {
			return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
		}
	}
	return nil
}

func newHTTPClient(allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = func(network, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return fmt.Errorf("%w: %s", ErrHostNotAllowed, address)
			}
			if isPrivateAddr(ap.Addr()) {
				return fmt.Errorf("%w: %s", ErrHostNotAllowed, ap.Addr())
			}
			return nil
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: 30 * time.Second, Transport: transport}
}

func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified()
}

func (r *Resolver) fetchS3(ctx context.Context, ref string) ([]byte, error) {
	if r.opts.S3 == nil {
		return nil, fmt.Errorf("%w: s3 storage not configured", ErrUnsupportedReference)
	}
	bucket, key, err := storage.ParseS3URL(ref)
	if err != nil {
		return nil, err
	}

	body, err := r.opts.S3.Download(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return r.readLimited(body)
}

func (r *Resolver) readLocal(name string) ([]byte, error) {
	if r.opts.Root == "" {
		return nil, fmt.Errorf("%w: local files disabled", ErrUnsupportedReference)
	}

	path, err := SafeJoin(r.opts.Root, name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return r.readLimited(f)
}

func (r *Resolver) readLimited(src io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(src, r.opts.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > r.opts.MaxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, r.opts.MaxBytes)
	}
	return data, nil
}

func (r *Resolver) decode(data []byte) (image.Image, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, fmt.Errorf("%w: detected %s", ErrNotImage, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unsupported %s image: %w", mt.String(), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("image has no pixels")
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(r.opts.MaxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, r.opts.MaxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", mt.String(), err)
	}
	return img, nil
}

// SafeJoin joins name onto root and rejects results outside root.
func SafeJoin(root, name string) (string, error) {
	full := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, name)
	}
	return full, nil
}

// Redact shortens inline data URLs for logs and error messages.
func Redact(ref string) string {
	const keep = 48
	if len(ref) <= keep+16 || !strings.HasPrefix(strings.ToLower(ref), "data:") {
		return ref
	}
	return fmt.Sprintf("%s...(%d bytes)", ref[:keep], len(ref))
}
