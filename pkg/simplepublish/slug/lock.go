package slug

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when the allocation lock stays contended
// past the retry budget.
var ErrLockNotAcquired = errors.New("slug lock not acquired")

// Locker serialises slug allocation plus insert for one key across requests.
type Locker interface {
	// Lock blocks until key is held. The returned unlock must be called once.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NoopLocker never blocks. The repository uniqueness constraint is then the
// only guard against concurrent identical titles.
type NoopLocker struct{}

func (NoopLocker) Lock(ctx context.Context, key string) (func(), error) {
	return func() {}, nil
}

// RedisLockerConfig holds configuration for RedisLocker.
type RedisLockerConfig struct {
	Prefix     string        // Key prefix (default: "simple-publish:slug:")
	TTL        time.Duration // Lock TTL (default: 10s)
	RetryDelay time.Duration // Delay between retries (default: 50ms)
	MaxRetries int           // Maximum retries (default: 100)
}

// RedisLocker is a Locker backed by SET NX PX with a token-checked release.
type RedisLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	maxRetries int
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// NewRedisLocker creates a Redis backed allocation lock
func NewRedisLocker(client redis.UniversalClient, cfg RedisLockerConfig) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "simple-publish:slug:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 100
	}
	return &RedisLocker{
		client:     client,
		prefix:     cfg.Prefix,
		ttl:        cfg.TTL,
		retryDelay: cfg.RetryDelay,
		maxRetries: cfg.MaxRetries,
	}
}

// Lock acquires key, retrying until the budget is spent or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	for i := range l.maxRetries {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire slug lock: %w", err)
		}
		if ok {
			return func() {
				// release even when the request context is already cancelled
				_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{fullKey}, token).Err()
			}, nil
		}
		if i < l.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(l.retryDelay):
			}
		}
	}
	return nil, ErrLockNotAcquired
}
