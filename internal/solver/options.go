package solver

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option configures a Solver.
type Option func(*Solver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver registers o before the first step.
func WithObserver(o Observer) Option {
	return func(s *Solver) { s.AddObserver(o) }
}

// WithWarningInterval limits overflow and NaN warnings to one per d.
func WithWarningInterval(d time.Duration) Option {
	return func(s *Solver) { s.warn = rate.NewLimiter(rate.Every(d), 1) }
}
