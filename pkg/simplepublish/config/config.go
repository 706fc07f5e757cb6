package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:            "8080",
		Environment:     "development",
		LogLevel:        "info",
		DatabaseURL:     "memory",
		DBSchema:        "public",
		AutoMigrate:     true,
		StorageURL:      "memory://",
		AssetsPath:      "/assets",
		ImagesPrefix:    "images",
		PDFsPrefix:      "pdfs",
		AvatarsPrefix:   "avatars",
		ObjectKeyLayout: "flat",
		MaxUploadBytes:  50 << 20,
		SlugLockTTL:     10 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		CORSOrigins:     []string{"*"},
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}

// ServerConfig represents server configuration for the simple-publish service.
// Field tags drive both environment loading and config files.
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" validate:"required,numeric"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" validate:"oneof=development production testing"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	// Database configuration: "memory", "postgres://...", "sqlite://path"
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" validate:"required"`
	DBSchema    string `yaml:"db_schema" env:"DB_SCHEMA"`
	AutoMigrate bool   `yaml:"auto_migrate" env:"AUTO_MIGRATE"`

	// Storage configuration: "memory://", "file:///dir", "s3://bucket?region=..."
	StorageURL string   `yaml:"storage_url" env:"STORAGE_URL" validate:"required"`
	S3         S3Config `yaml:"s3"`

	// PublicBaseURL overrides how object URLs are built. Empty derives one
	// from the storage backend.
	PublicBaseURL string `yaml:"public_base_url" env:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	AssetsPath    string `yaml:"assets_path" env:"ASSETS_PATH" validate:"required,startswith=/"`

	ImagesPrefix    string `yaml:"images_prefix" env:"S3_IMAGES_PREFIX" validate:"required"`
	PDFsPrefix      string `yaml:"pdfs_prefix" env:"S3_PDFS_PREFIX" validate:"required"`
	AvatarsPrefix   string `yaml:"avatars_prefix" env:"S3_AVATARS_PREFIX" validate:"required"`
	ObjectKeyLayout string `yaml:"object_key_layout" env:"OBJECT_KEY_LAYOUT" validate:"oneof=flat sharded"`

	// RedisURL enables the distributed slug allocation lock.
	RedisURL    string        `yaml:"redis_url" env:"REDIS_URL"`
	SlugLockTTL time.Duration `yaml:"slug_lock_ttl" env:"SLUG_LOCK_TTL" validate:"gt=0"`

	ProfileName  string `yaml:"profile_name" env:"PROFILE_NAME"`
	ProfileEmail string `yaml:"profile_email" env:"PROFILE_EMAIL" validate:"omitempty,email"`

	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:","`
}

// S3Config holds the S3 options that do not fit in STORAGE_URL.
type S3Config struct {
	Region          string `yaml:"region" env:"AWS_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" validate:"omitempty,url"`
	UsePathStyle    bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE"`
	PublicRead      bool   `yaml:"public_read" env:"S3_PUBLIC_READ"`
	EnableSSE       bool   `yaml:"enable_sse" env:"S3_ENABLE_SSE"`
	SSEAlgorithm    string `yaml:"sse_algorithm" env:"S3_SSE_ALGORITHM" validate:"omitempty,oneof=AES256 aws:kms"`
	SSEKMSKeyID     string `yaml:"sse_kms_key_id" env:"S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `yaml:"create_bucket" env:"S3_CREATE_BUCKET"`
}

// Database backend kinds.
const (
	DatabaseMemory   = "memory"
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

// Storage backend kinds.
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, _, err := c.Database(); err != nil {
		return err
	}
	if _, _, err := c.Storage(); err != nil {
		return err
	}
	if c.S3.SSEAlgorithm == "aws:kms" && !c.S3.EnableSSE {
		return errors.New("S3_SSE_ALGORITHM requires S3_ENABLE_SSE")
	}
	return nil
}

// Database returns the database kind and its connection string.
func (c *ServerConfig) Database() (kind, dsn string, err error) {
	raw := strings.TrimSpace(c.DatabaseURL)
	switch {
	case raw == "" || raw == "memory":
		return DatabaseMemory, "", nil
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return DatabasePostgres, raw, nil
	case strings.HasPrefix(raw, "sqlite://"):
		dsn = strings.TrimPrefix(raw, "sqlite://")
		if dsn == "" {
			return "", "", errors.New("DATABASE_URL sqlite:// requires a path")
		}
		return DatabaseSQLite, dsn, nil
	default:
		return "", "", fmt.Errorf("DATABASE_URL must be memory, postgres://... or sqlite://..., got %q", redact(raw))
	}
}

// Storage returns the storage kind and its location: the base directory for
// fs, the bucket for s3 and "" for memory.
func (c *ServerConfig) Storage() (kind, location string, err error) {
	raw := strings.TrimSpace(c.StorageURL)
	if raw == "" || raw == "memory" || raw == "memory://" {
		return StorageMemory, "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	switch u.Scheme {
	case "memory":
		return StorageMemory, "", nil
	case "file":
		dir := u.Path
		if u.Host != "" && u.Host != "localhost" {
			dir = u.Host + u.Path
		}
		if dir == "" {
			return "", "", errors.New("STORAGE_URL file:// requires a directory")
		}
		return StorageFS, dir, nil
	case "s3":
		if u.Host == "" {
			return "", "", errors.New("STORAGE_URL s3:// requires a bucket")
		}
		return StorageS3, u.Host, nil
	default:
		return "", "", fmt.Errorf("unsupported STORAGE_URL scheme %q", u.Scheme)
	}
}

// s3Region returns the region from the STORAGE_URL query, falling back to
// AWS_REGION.
func (c *ServerConfig) s3Region() string {
	if u, err := url.Parse(c.StorageURL); err == nil {
		if region := u.Query().Get("region"); region != "" {
			return region
		}
	}
	return c.S3.Region
}

// IsProduction reports whether the server runs in production mode.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
