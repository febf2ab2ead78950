package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
)

// Observer is told about every operation phase. Settled phases carry the
// time spent in flight.
type Observer interface {
	ObserveSessionPhase(op models.Operation, phase models.Phase, elapsed time.Duration)
}

// Option configures a Store.
type Option func(*Store)

// WithStrictSequencing makes login, register, logout and setCredentials
// supersede operations dispatched before them: a stale resolution only
// updates loading and error, never user or token.
func WithStrictSequencing() Option {
	return func(s *Store) {
		s.strict = true
	}
}

// WithObserver registers a phase observer.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}
