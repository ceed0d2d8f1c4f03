// Package cache holds the Redis-backed coordination used by the batch
// service.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/vorell/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "vorell:batch:lease:"
	defaultTTL       = 5 * time.Minute
	pingTimeout      = 5 * time.Second
)

// ErrNotHeld is returned by Release when the lease expired or belongs to
// another holder.
var ErrNotHeld = errors.New("lease not held")

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Leaser grants short exclusive leases so that only one batch replica runs
// a phase per trigger.
type Leaser struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	owner  string
	logger logger.Logger
}

// Option applies a configuration option to the Leaser.
type Option func(*Leaser)

// WithTTL sets how long a lease lives without release.
func WithTTL(ttl time.Duration) Option {
	return func(l *Leaser) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(l *Leaser) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithLogger sets the leaser's logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Leaser) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// Dial connects to Redis and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		PoolSize:     4,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  pingTimeout,
	})

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return client, nil
}

// NewLeaser creates a leaser over client. Each leaser has its own owner
// token.
func NewLeaser(client redis.UniversalClient, opts ...Option) *Leaser {
	l := &Leaser{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    defaultTTL,
		owner:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("lease")
	}
	return l
}

// TryAcquire takes the lease for name if nobody holds it.
func (l *Leaser) TryAcquire(ctx context.Context, name string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+name, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %s: %w", name, err)
	}
	l.logger.Debug(ctx, "lease attempt",
		logger.String("lease", name),
		logger.Bool("acquired", ok),
	)
	return ok, nil
}

// Release gives up the lease for name if we still hold it.
func (l *Leaser) Release(ctx context.Context, name string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, l.owner).Int64()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("release lease %s: %w", name, ErrNotHeld)
	}
	return nil
}
