package domain

import (
	"fmt"
	"strings"
	"time"
)

// LinkState represents the lifecycle state of a submitted link.
// Deleted links are removed physically and never observed as a state.
type LinkState string

const (
	StatePending LinkState = "PENDING"
	StateSent    LinkState = "SENT"
	StateCopied  LinkState = "COPIED"
)

func (s LinkState) String() string { return string(s) }

func (s LinkState) IsValid() bool {
	switch s {
	case StatePending, StateSent, StateCopied:
		return true
	}
	return false
}

func ParseLinkStateFromString(s string) (LinkState, error) {
	st := LinkState(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid link state %q", ErrValidation, s)
	}
	return st, nil
}

// UnassignedGroup is the implicit destination group for links without a label.
const UnassignedGroup = "UNASSIGNED"

// MaxURLLength bounds submitted link text.
const MaxURLLength = 2048

// Link is the core domain entity: one submitted product reference.
//
// Invariants: a link is Pending iff SentAt is nil; CopiedAt is only set on
// links with SentAt set; BatchID is assigned atomically with the
// Pending -> Sent transition and never changes afterwards.
type Link struct {
	ID               string
	URL              string
	State            LinkState
	DestinationLabel *string
	BatchID          *string
	CreatedAt        time.Time
	SentAt           *time.Time
	CopiedAt         *time.Time
}

func (l *Link) Validate() error {
	if l == nil {
		return fmt.Errorf("%w: link is required", ErrValidation)
	}
	if strings.TrimSpace(l.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrValidation)
	}
	if len([]rune(l.URL)) > MaxURLLength {
		return fmt.Errorf("%w: url exceeds %d characters", ErrValidation, MaxURLLength)
	}
	if !l.State.IsValid() {
		return fmt.Errorf("%w: invalid link state %q", ErrValidation, l.State)
	}
	if l.State == StatePending && l.SentAt != nil {
		return fmt.Errorf("%w: pending link must not have a sent timestamp", ErrValidation)
	}
	if l.State != StatePending && l.SentAt == nil {
		return fmt.Errorf("%w: %s link must have a sent timestamp", ErrValidation, l.State)
	}
	if l.CopiedAt != nil && l.SentAt == nil {
		return fmt.Errorf("%w: copied timestamp requires a sent timestamp", ErrValidation)
	}
	if l.BatchID != nil && l.SentAt == nil {
		return fmt.Errorf("%w: batch id requires a sent timestamp", ErrValidation)
	}
	return nil
}

// IsPending reports whether the link still waits in the queue.
func (l *Link) IsPending() bool {
	return l != nil && l.SentAt == nil
}

// GroupLabel returns the destination group the link belongs to,
// falling back to the implicit unassigned group.
func (l *Link) GroupLabel() string {
	if l == nil || l.DestinationLabel == nil {
		return UnassignedGroup
	}
	label := strings.TrimSpace(*l.DestinationLabel)
	if label == "" {
		return UnassignedGroup
	}
	return label
}
