package repository

import (
	"time"

	"github.com/okian/vorell/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMaxOpenConns caps the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns sets the idle pool size.
func WithMaxIdleConns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxIdleConns = n
		}
	}
}

// WithSQLDebug logs every statement through gorm's logger.
func WithSQLDebug(enabled bool) Option {
	return func(s *Store) {
		s.sqlDebug = enabled
	}
}

// WithClock sets the time source for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
