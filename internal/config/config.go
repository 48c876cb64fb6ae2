// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Storage backends understood by STORAGE_BACKEND.
const (
	BackendMinio  = "minio"
	BackendMemory = "memory"
)

// maxPresignTTL is the longest validity S3 signature v4 accepts.
const maxPresignTTL = 7 * 24 * time.Hour

// Config holds all runtime configuration for the service.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Object storage (S3-compatible: MinIO locally, any S3 provider in production)
	StorageBackend    string `env:"STORAGE_BACKEND" envDefault:"minio"`
	StorageEndpoint   string `env:"STORAGE_ENDPOINT" envDefault:"localhost"`
	StoragePort       int    `env:"STORAGE_PORT" envDefault:"9000"`
	StorageUseSSL     bool   `env:"STORAGE_USE_SSL" envDefault:"false"`
	StorageRegion     string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	StorageAccessKey  string `env:"STORAGE_ACCESS_KEY" envDefault:"minioadmin"`
	StorageSecretKey  string `env:"STORAGE_SECRET_KEY" envDefault:"minioadmin"`
	StorageBucket     string `env:"STORAGE_BUCKET" envDefault:"media"`
	StoragePublicBase string `env:"STORAGE_PUBLIC_BASE"` // browser-accessible base, e.g. "http://localhost:9000/media"

	// Media rules
	PresignedURLTTLSeconds int      `env:"PRESIGNED_URL_TTL" envDefault:"3600"`
	MaxUploadSize          int64    `env:"MAX_UPLOAD_SIZE" envDefault:"104857600"`
	AllowedMIMETypes       []string `env:"ALLOWED_MIME_TYPES" envSeparator:"," envDefault:"image/jpeg,image/png,image/gif,image/webp,video/mp4,video/webm,application/pdf"`
	DirectURLsEnabled      bool     `env:"DIRECT_URLS_ENABLED" envDefault:"true"`

	// Bearer token verification
	JWTSecret        string `env:"JWT_SECRET"`
	AuthJWKSURL      string `env:"AUTH_JWKS_URL"`
	DeletePermission string `env:"DELETE_PERMISSION" envDefault:"media:delete"`
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.StorageEndpoint = strings.TrimSpace(c.StorageEndpoint)
	c.StorageBucket = strings.TrimSpace(c.StorageBucket)
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.AuthJWKSURL = strings.TrimSpace(c.AuthJWKSURL)

	types := make([]string, 0, len(c.AllowedMIMETypes))
	for _, t := range c.AllowedMIMETypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			types = append(types, t)
		}
	}
	c.AllowedMIMETypes = types

	if strings.TrimSpace(c.StoragePublicBase) == "" {
		c.StoragePublicBase = fmt.Sprintf("%s://%s/%s", c.scheme(), c.StorageAddr(), c.StorageBucket)
	}
	c.StoragePublicBase = strings.TrimRight(c.StoragePublicBase, "/")
}

// Validate reports the first configuration value the service cannot run with.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMinio, BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendMinio, BackendMemory, c.StorageBackend)
	}
	if c.StorageBucket == "" {
		return errors.New("STORAGE_BUCKET is required")
	}
	if c.PresignedURLTTLSeconds <= 0 || c.PresignTTL() > maxPresignTTL {
		return fmt.Errorf("PRESIGNED_URL_TTL must be between 1 and %d seconds", int(maxPresignTTL.Seconds()))
	}
	if c.MaxUploadSize <= 0 {
		return errors.New("MAX_UPLOAD_SIZE must be positive")
	}
	if len(c.AllowedMIMETypes) == 0 {
		return errors.New("ALLOWED_MIME_TYPES must list at least one type")
	}
	if c.JWTSecret == "" && c.AuthJWKSURL == "" {
		return errors.New("JWT_SECRET or AUTH_JWKS_URL is required")
	}
	return nil
}

// StorageAddr returns the host:port pair of the object store.
func (c *Config) StorageAddr() string {
	if c.StoragePort <= 0 {
		return c.StorageEndpoint
	}
	return fmt.Sprintf("%s:%d", c.StorageEndpoint, c.StoragePort)
}

// PresignTTL returns the capability URL validity window.
func (c *Config) PresignTTL() time.Duration {
	return time.Duration(c.PresignedURLTTLSeconds) * time.Second
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) scheme() string {
	if c.StorageUseSSL {
		return "https"
	}
	return "http"
}
