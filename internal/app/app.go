// Package app wires configuration into the certificate services shared by
// the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"certificate-studio/generator-backend/internal/assets"
	"certificate-studio/generator-backend/internal/certificates"
	"certificate-studio/generator-backend/internal/certificates/export"
	"certificate-studio/generator-backend/internal/certificates/render"
	"certificate-studio/generator-backend/internal/config"
	"certificate-studio/generator-backend/pkg/storage"
)

// App holds the wired services.
type App struct {
	Service   *certificates.Service
	Publisher *certificates.Publisher // nil without S3
	Storage   storage.S3Client        // nil without S3

	cache *assets.CachingResolver
}

// New builds the services described by cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	renderOpts, err := renderOptions(cfg.Render)
	if err != nil {
		return nil, err
	}

	a := &App{}

	s3Client, err := storage.NewS3Client(ctx, storage.S3Config{
		Endpoint:        cfg.Storage.S3.Endpoint,
		Region:          cfg.Storage.S3.Region,
		AccessKeyID:     cfg.Storage.S3.AccessKeyID,
		SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		Bucket:          cfg.Storage.S3.Bucket,
		UsePathStyle:    cfg.Storage.S3.UsePathStyle,
	})
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		logger.Info("S3 storage not configured, using local storage only")
	case err != nil:
		return nil, err
	default:
		a.Storage = s3Client
		a.Publisher = certificates.NewPublisher(s3Client, cfg.Storage.S3.Bucket, cfg.Storage.S3.URLExpiry, logger)
	}

	fonts, err := render.NewFontBook()
	if err != nil {
		return nil, err
	}
	if cfg.Render.FontDir != "" {
		n, err := fonts.LoadDir(cfg.Render.FontDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load fonts: %w", err)
		}
		logger.Info("Loaded fonts", zap.String("dir", cfg.Render.FontDir), zap.Int("count", n))
	}

	var resolver assets.ImageResolver = assets.NewResolver(assets.ResolverOptions{
		Root:              cfg.Storage.LocalRoot,
		S3:                a.Storage,
		MaxBytes:          cfg.Render.MaxImageBytes,
		AllowedHosts:      cfg.Render.AllowedImageHosts,
		AllowPrivateHosts: cfg.Render.AllowPrivateImageHosts,
	}, logger)
	if cfg.Render.ImageCacheTTL > 0 {
		a.cache = assets.NewCachingResolver(resolver, assets.CacheOptions{
			TTL:            cfg.Render.ImageCacheTTL,
			MaxEntries:     cfg.Render.ImageCacheEntries,
			MaxPixels:      cfg.Render.ImageCachePixels,
			ResolveTimeout: renderOpts.DecodeTimeout,
		})
		resolver = a.cache
	}

	var lister assets.FileLister
	if a.Storage != nil {
		lister = &assets.S3Lister{Client: a.Storage, Bucket: cfg.Storage.S3.Bucket}
	} else if cfg.Storage.LocalRoot != "" {
		lister = &assets.LocalLister{Root: cfg.Storage.LocalRoot}
	}

	pdfOpts := export.DefaultPDFOptions()
	if cfg.Render.JPEGQuality > 0 {
		pdfOpts.JPEGQuality = cfg.Render.JPEGQuality
	}

	a.Service = certificates.NewService(
		render.NewCompositor(resolver, fonts, renderOpts, logger),
		export.NewPDFExporter(pdfOpts),
		lister,
		logger,
	)
	return a, nil
}

// Close releases background resources.
func (a *App) Close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

func renderOptions(cfg config.RenderConfig) (render.Options, error) {
	opts := render.DefaultOptions()
	if cfg.DecodeTimeout > 0 {
		opts.DecodeTimeout = cfg.DecodeTimeout
	}
	if cfg.DecodeConcurrency > 0 {
		opts.DecodeConcurrency = cfg.DecodeConcurrency
	}

	markup, err := render.ParseMarkupMode(cfg.MarkupMode)
	if err != nil {
		return opts, err
	}
	opts.Markup = markup

	overflow, err := render.ParseOverflowPolicy(cfg.OverflowPolicy)
	if err != nil {
		return opts, err
	}
	opts.Overflow = overflow
	return opts, nil
}
