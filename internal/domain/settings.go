package domain

import (
	"fmt"
	"time"
)

const (
	// DefaultMaxPending is the queue capacity used when no settings row exists.
	DefaultMaxPending = 100

	// MinMaxPending is the smallest capacity an administrator may configure.
	MinMaxPending = 10
)

// Settings is the singleton queue configuration. Changes take effect for
// subsequent enqueue calls only; they never evict already-pending links.
type Settings struct {
	MaxPending int
	UpdatedAt  time.Time
}

func (s *Settings) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: settings are required", ErrInvalidConfig)
	}
	if s.MaxPending < MinMaxPending {
		return fmt.Errorf("%w: max pending must be at least %d (got %d)", ErrInvalidConfig, MinMaxPending, s.MaxPending)
	}
	return nil
}
