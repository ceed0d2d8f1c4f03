package ledger

import "time"

// Option applies a configuration option to the in-memory ledger.
type Option func(*Memory)

// WithClock sets the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Memory) {
		if now != nil {
			l.now = now
		}
	}
}

// WithIDGenerator sets the generator used for record ids.
func WithIDGenerator(gen func() string) Option {
	return func(l *Memory) {
		if gen != nil {
			l.newID = gen
		}
	}
}
