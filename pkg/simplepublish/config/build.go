package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/metrics"
	"github.com/tendant/simple-publish/pkg/simplepublish/objectkey"
	"github.com/tendant/simple-publish/pkg/simplepublish/repo/memory"
	repopg "github.com/tendant/simple-publish/pkg/simplepublish/repo/postgres"
	reposqlite "github.com/tendant/simple-publish/pkg/simplepublish/repo/sqlite"
	"github.com/tendant/simple-publish/pkg/simplepublish/slug"
	fsstorage "github.com/tendant/simple-publish/pkg/simplepublish/storage/fs"
	memorystorage "github.com/tendant/simple-publish/pkg/simplepublish/storage/memory"
	s3storage "github.com/tendant/simple-publish/pkg/simplepublish/storage/s3"
	"github.com/tendant/simple-publish/pkg/simplepublish/urlstrategy"
)

// Runtime is a built service plus the resources it owns.
type Runtime struct {
	Service simplepublish.Service

	// Assets is the blob store to serve under AssetsPath, nil when objects
	// are served by the store itself (s3).
	Assets simplepublish.BlobStore

	pingers []func(ctx context.Context) error
	closers []func()
}

// Ping checks every backing connection.
func (r *Runtime) Ping(ctx context.Context) error {
	for _, ping := range r.pingers {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases connections in reverse order of creation.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// BuildService creates the service and its backends from the configuration.
// A nil reg disables metrics.
func (c *ServerConfig) BuildService(ctx context.Context, logger *slog.Logger, reg prometheus.Registerer) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{}
	options := []simplepublish.Option{
		simplepublish.WithLogger(logger),
		simplepublish.WithPrefixes(simplepublish.Prefixes{
			Images:  c.ImagesPrefix,
			PDFs:    c.PDFsPrefix,
			Avatars: c.AvatarsPrefix,
		}),
		simplepublish.WithProfileInfo(c.ProfileName, c.ProfileEmail),
	}

	store, err := c.buildRepository(ctx, rt)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	options = append(options, simplepublish.WithRepository(store))

	kind, _, _ := c.Storage()
	blobs, err := c.buildStorageBackend(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to build storage backend %s: %w", kind, err)
	}
	options = append(options, simplepublish.WithBlobStore(kind, blobs))
	if kind != StorageS3 {
		rt.Assets = blobs
	}

	keys, err := objectkey.New(c.ObjectKeyLayout)
	if err != nil {
		rt.Close()
		return nil, err
	}
	options = append(options,
		simplepublish.WithKeyGenerator(keys),
		simplepublish.WithURLStrategy(c.urlStrategy()),
	)

	if c.RedisURL != "" {
		locker, err := c.buildLocker(rt)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to build slug lock: %w", err)
		}
		options = append(options, simplepublish.WithSlugLocker(locker))
	}

	if reg != nil {
		options = append(options, simplepublish.WithEventSink(metrics.NewRecorder(reg)))
	}

	svc, err := simplepublish.New(options...)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Service = svc
	return rt, nil
}

// buildRepository creates a Store based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (simplepublish.Store, error) {
	kind, dsn, err := c.Database()
	if err != nil {
		return nil, err
	}
	switch kind {
	case DatabaseMemory:
		return memory.New(), nil
	case DatabasePostgres:
		pool, err := c.openPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		rt.pingers = append(rt.pingers, pool.Ping)
		if c.AutoMigrate {
			if err := migratePostgres(ctx, pool, c.DBSchema); err != nil {
				return nil, err
			}
		}
		return repopg.NewWithPool(pool), nil
	case DatabaseSQLite:
		db, err := reposqlite.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		rt.pingers = append(rt.pingers, db.PingContext)
		if c.AutoMigrate {
			if err := reposqlite.Migrate(ctx, db); err != nil {
				return nil, err
			}
		}
		return reposqlite.New(db), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", kind)
	}
}

func (c *ServerConfig) openPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema := c.DBSchema; schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return pool, nil
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	if schema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
			return fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	return repopg.Migrate(ctx, pool)
}

// Migrate creates the relational schema for the configured database.
func (c *ServerConfig) Migrate(ctx context.Context) error {
	kind, dsn, err := c.Database()
	if err != nil {
		return err
	}
	switch kind {
	case DatabaseMemory:
		return nil
	case DatabasePostgres:
		pool, err := c.openPostgres(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()
		return migratePostgres(ctx, pool, c.DBSchema)
	case DatabaseSQLite:
		db, err := reposqlite.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer func(db *sql.DB) { _ = db.Close() }(db)
		return reposqlite.Migrate(ctx, db)
	default:
		return fmt.Errorf("unsupported database type: %s", kind)
	}
}

// PingDatabase verifies connectivity to the configured database.
func (c *ServerConfig) PingDatabase(ctx context.Context) error {
	kind, dsn, err := c.Database()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	switch kind {
	case DatabasePostgres:
		pool, err := c.openPostgres(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
	case DatabaseSQLite:
		db, err := reposqlite.Open(ctx, dsn)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
	}
	return nil
}

// buildStorageBackend creates a BlobStore based on the configuration
func (c *ServerConfig) buildStorageBackend(ctx context.Context) (simplepublish.BlobStore, error) {
	kind, location, err := c.Storage()
	if err != nil {
		return nil, err
	}
	switch kind {
	case StorageMemory:
		return memorystorage.New(), nil
	case StorageFS:
		return fsstorage.New(fsstorage.Config{BaseDir: location})
	case StorageS3:
		return s3storage.New(ctx, s3storage.Config{
			Region:                 c.s3Region(),
			Bucket:                 location,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               c.S3.Endpoint,
			UsePathStyle:           c.S3.UsePathStyle,
			PublicRead:             c.S3.PublicRead,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
	default:
		return nil, errors.New("unsupported storage type: " + kind)
	}
}

// urlStrategy picks how public object URLs are formed: an explicit base URL
// wins, then the S3 bucket address, then the local asset route.
func (c *ServerConfig) urlStrategy() urlstrategy.URLStrategy {
	if c.PublicBaseURL != "" {
		return urlstrategy.NewBaseURLStrategy(c.PublicBaseURL)
	}
	kind, bucket, _ := c.Storage()
	if kind == StorageS3 {
		switch {
		case c.S3.Endpoint != "" && c.S3.UsePathStyle:
			return urlstrategy.NewPathStyleStrategy(c.S3.Endpoint, bucket)
		case c.S3.Endpoint != "":
			return urlstrategy.NewVirtualHostStrategy(c.S3.Endpoint, bucket)
		}
		return urlstrategy.NewS3Strategy(bucket, c.s3Region())
	}
	return urlstrategy.NewBaseURLStrategy(c.AssetsPath)
}

func (c *ServerConfig) buildLocker(rt *Runtime) (slug.Locker, error) {
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	rt.closers = append(rt.closers, func() { _ = client.Close() })
	rt.pingers = append(rt.pingers, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return slug.NewRedisLocker(client, slug.RedisLockerConfig{TTL: c.SlugLockTTL}), nil
}
