package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// WithEnv overlays environment variables on the configuration.
//
// Variables:
//
//	PORT, ENVIRONMENT, LOG_LEVEL
//	DATABASE_URL - "memory" (default), "postgres://...", "sqlite://path"
//	DB_SCHEMA, AUTO_MIGRATE
//	STORAGE_URL  - "memory://" (default), "file:///dir", "s3://bucket?region=..."
//	AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
//	S3_ENDPOINT, S3_USE_PATH_STYLE, S3_PUBLIC_READ, S3_CREATE_BUCKET
//	S3_ENABLE_SSE, S3_SSE_ALGORITHM, S3_SSE_KMS_KEY_ID
//	S3_IMAGES_PREFIX, S3_PDFS_PREFIX, S3_AVATARS_PREFIX, OBJECT_KEY_LAYOUT
//	PUBLIC_BASE_URL, ASSETS_PATH
//	REDIS_URL, SLUG_LOCK_TTL
//	PROFILE_NAME, PROFILE_EMAIL
//	MAX_UPLOAD_BYTES, SHUTDOWN_TIMEOUT, CORS_ORIGINS
//
// Unset variables keep their current values.
func WithEnv() Option {
	return func(c *ServerConfig) error {
		if err := cleanenv.ReadEnv(c); err != nil {
			return fmt.Errorf("read environment: %w", err)
		}
		return nil
	}
}

// WithFile reads a yaml, json, toml or .env file, then overlays the
// environment on top of it.
func WithFile(path string) Option {
	return func(c *ServerConfig) error {
		if path == "" {
			return nil
		}
		if err := cleanenv.ReadConfig(path, c); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}
}

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithLogLevel sets the log level (debug, info, warn, error)
func WithLogLevel(level string) Option {
	return func(c *ServerConfig) error {
		c.LogLevel = strings.ToLower(level)
		return nil
	}
}

// WithDatabaseURL selects the repository backend
func WithDatabaseURL(databaseURL string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseURL = databaseURL
		return nil
	}
}

// WithDatabaseSchema sets the database schema (for Postgres)
func WithDatabaseSchema(schema string) Option {
	return func(c *ServerConfig) error {
		c.DBSchema = schema
		return nil
	}
}

// WithAutoMigrate toggles schema creation at startup
func WithAutoMigrate(enabled bool) Option {
	return func(c *ServerConfig) error {
		c.AutoMigrate = enabled
		return nil
	}
}

// WithStorageURL selects the object store backend
func WithStorageURL(storageURL string) Option {
	return func(c *ServerConfig) error {
		c.StorageURL = storageURL
		return nil
	}
}

// WithS3 sets the S3 backend options
func WithS3(s3 S3Config) Option {
	return func(c *ServerConfig) error {
		c.S3 = s3
		return nil
	}
}

// WithPublicBaseURL sets the base URL used for object links
func WithPublicBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		c.PublicBaseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithPrefixes sets the object key prefixes for covers, PDFs and avatars
func WithPrefixes(images, pdfs, avatars string) Option {
	return func(c *ServerConfig) error {
		if images == "" || pdfs == "" || avatars == "" {
			return fmt.Errorf("object key prefixes cannot be empty")
		}
		c.ImagesPrefix, c.PDFsPrefix, c.AvatarsPrefix = images, pdfs, avatars
		return nil
	}
}

// WithObjectKeyLayout selects the key generator ("flat" or "sharded")
func WithObjectKeyLayout(layout string) Option {
	return func(c *ServerConfig) error {
		c.ObjectKeyLayout = layout
		return nil
	}
}

// WithRedis enables the distributed slug lock
func WithRedis(redisURL string, ttl time.Duration) Option {
	return func(c *ServerConfig) error {
		c.RedisURL = redisURL
		if ttl > 0 {
			c.SlugLockTTL = ttl
		}
		return nil
	}
}

// WithProfile sets the display name and email of the site profile
func WithProfile(name, email string) Option {
	return func(c *ServerConfig) error {
		c.ProfileName, c.ProfileEmail = name, email
		return nil
	}
}

// WithMaxUploadBytes sets the multipart request ceiling
func WithMaxUploadBytes(n int64) Option {
	return func(c *ServerConfig) error {
		if n <= 0 {
			return fmt.Errorf("max upload bytes must be positive, got %d", n)
		}
		c.MaxUploadBytes = n
		return nil
	}
}

// WithCORSOrigins sets the allowed CORS origins
func WithCORSOrigins(origins ...string) Option {
	return func(c *ServerConfig) error {
		c.CORSOrigins = origins
		return nil
	}
}
