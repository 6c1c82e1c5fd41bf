package domain

import (
	"fmt"
	"strings"
	"time"
)

// Destination maps a human-readable label to delivery metadata.
// The delivery address is opaque to the engine; only the notifier
// interprets it.
type Destination struct {
	Label           string
	DeliveryAddress string
	DisplayName     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (d *Destination) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: destination is required", ErrValidation)
	}
	if strings.TrimSpace(d.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrValidation)
	}
	if strings.EqualFold(strings.TrimSpace(d.Label), UnassignedGroup) {
		return fmt.Errorf("%w: label %q is reserved", ErrValidation, UnassignedGroup)
	}
	if strings.TrimSpace(d.DeliveryAddress) == "" {
		return fmt.Errorf("%w: delivery address is required", ErrValidation)
	}
	return nil
}
