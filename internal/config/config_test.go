package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Render.DecodeTimeout)
	assert.Equal(t, "shrink", cfg.Render.OverflowPolicy)
	assert.False(t, cfg.Storage.S3.Enabled())
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"render": {"markup_mode": "literal", "decode_concurrency": 8},
		"storage": {"s3": {"bucket": "from-file"}}
	}`), 0o644))

	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("RENDER_DECODE_TIMEOUT", "250ms")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RENDER_ALLOWED_IMAGE_HOSTS", "cdn.example.com, images.example.com")
	t.Setenv("RENDER_IMAGE_CACHE_ENTRIES", "8")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "literal", cfg.Render.MarkupMode)
	assert.Equal(t, 8, cfg.Render.DecodeConcurrency)
	// defaults survive for keys the file leaves out
	assert.Equal(t, 95, cfg.Render.JPEGQuality)
	assert.Equal(t, "from-env", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.Enabled())
	assert.Equal(t, 250*time.Millisecond, cfg.Render.DecodeTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"cdn.example.com", "images.example.com"}, cfg.Render.AllowedImageHosts)
	assert.Equal(t, 8, cfg.Render.ImageCacheEntries)
	assert.False(t, cfg.Render.AllowPrivateImageHosts)
}

func TestLoadConfig_Errors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":`), 0o644))

	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse config file")

	t.Setenv("SERVER_PORT", "eighty")
	_, err = LoadConfig("")
	assert.ErrorContains(t, err, "SERVER_PORT")
}

func TestNewLogger(t *testing.T) {
	logger, err := (&LoggingConfig{Level: "warn"}).NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = (&LoggingConfig{Level: "loud"}).NewLogger()
	assert.Error(t, err)
}
