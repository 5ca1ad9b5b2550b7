package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `json:"server"`
	Render  RenderConfig  `json:"render"`
	Storage StorageConfig `json:"storage"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	MaxBodyBytes    int64         `json:"max_body_bytes"`
}

// RenderConfig configures rasterization and PDF output
type RenderConfig struct {
	DecodeTimeout     time.Duration `json:"decode_timeout"`
	DecodeConcurrency int           `json:"decode_concurrency"`
	FontDir           string        `json:"font_dir"`
	MarkupMode        string        `json:"markup_mode"`
	OverflowPolicy    string        `json:"overflow_policy"`
	JPEGQuality       int           `json:"jpeg_quality"`
	MaxImageBytes     int64         `json:"max_image_bytes"`
	ImageCacheTTL     time.Duration `json:"image_cache_ttl"`
	ImageCacheEntries int           `json:"image_cache_entries"`
	ImageCachePixels  int64         `json:"image_cache_pixels"`
	BatchConcurrency  int           `json:"batch_concurrency"`

	// AllowedImageHosts restricts http(s) image references to these hosts.
	// Empty allows any host.
	AllowedImageHosts []string `json:"allowed_image_hosts"`

	// AllowPrivateImageHosts permits fetching images from loopback, private
	// and link-local addresses.
	AllowPrivateImageHosts bool `json:"allow_private_image_hosts"`
}

// StorageConfig locates image assets and certificate files
type StorageConfig struct {
	LocalRoot string   `json:"local_root"`
	S3        S3Config `json:"s3"`
}

// S3Config configures the optional object store
type S3Config struct {
	Endpoint        string        `json:"endpoint"`
	Region          string        `json:"region"`
	AccessKeyID     string        `json:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key"`
	Bucket          string        `json:"bucket"`
	UsePathStyle    bool          `json:"use_path_style"`
	URLExpiry       time.Duration `json:"url_expiry"`
}

// Enabled reports whether a bucket is configured.
func (c *S3Config) Enabled() bool {
	return c.Bucket != ""
}

// LoggingConfig
type LoggingConfig struct {
	Level       string `json:"level"`
	Development bool   `json:"development"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		Render: RenderConfig{
			DecodeTimeout:     5 * time.Second,
			DecodeConcurrency: 4,
			MarkupMode:        "text",
			OverflowPolicy:    "shrink",
			JPEGQuality:       95,
			MaxImageBytes:     20 << 20,
			ImageCacheTTL:     10 * time.Minute,
			ImageCacheEntries: 64,
			ImageCachePixels:  200_000_000,
			BatchConcurrency:  4,
		},
		Storage: StorageConfig{
			LocalRoot: "./data",
			S3: S3Config{
				Region:    "us-east-1",
				URLExpiry: 24 * time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables. A
// missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	if err := overrideWithEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

func overrideWithEnv(config *Config) error {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SERVER_PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}

	if v := os.Getenv("RENDER_DECODE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RENDER_DECODE_TIMEOUT %q: %w", v, err)
		}
		config.Render.DecodeTimeout = d
	}
	if v := os.Getenv("RENDER_DECODE_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RENDER_DECODE_CONCURRENCY %q: %w", v, err)
		}
		config.Render.DecodeConcurrency = n
	}
	if v := os.Getenv("RENDER_FONT_DIR"); v != "" {
		config.Render.FontDir = v
	}
	if v := os.Getenv("RENDER_MARKUP_MODE"); v != "" {
		config.Render.MarkupMode = strings.ToLower(v)
	}
	if v := os.Getenv("RENDER_OVERFLOW_POLICY"); v != "" {
		config.Render.OverflowPolicy = strings.ToLower(v)
	}

	if v := os.Getenv("RENDER_IMAGE_CACHE_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RENDER_IMAGE_CACHE_ENTRIES %q: %w", v, err)
		}
		config.Render.ImageCacheEntries = n
	}
	if v := os.Getenv("RENDER_ALLOWED_IMAGE_HOSTS"); v != "" {
		config.Render.AllowedImageHosts = nil
		for _, host := range strings.Split(v, ",") {
			if host = strings.TrimSpace(host); host != "" {
				config.Render.AllowedImageHosts = append(config.Render.AllowedImageHosts, host)
			}
		}
	}
	if v := os.Getenv("RENDER_ALLOW_PRIVATE_IMAGE_HOSTS"); v != "" {
		config.Render.AllowPrivateImageHosts = v == "true" || v == "1"
	}

	if v := os.Getenv("STORAGE_LOCAL_ROOT"); v != "" {
		config.Storage.LocalRoot = v
	}
	if v := os.Getenv("S3_ENDPOINT"); v != "" {
		config.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		config.Storage.S3.Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		config.Storage.S3.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		config.Storage.S3.SecretAccessKey = v
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		config.Storage.S3.Bucket = v
	}
	if v := os.Getenv("S3_USE_PATH_STYLE"); v != "" {
		config.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if env := os.Getenv("APP_ENV"); env == "production" {
		config.Logging.Development = false
	}
	return nil
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
