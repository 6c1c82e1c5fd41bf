package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseLinkStateFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    LinkState
		wantErr bool
	}{
		{name: "valid uppercase", input: "SENT", want: StateSent},
		{name: "valid lowercase with spaces", input: " pending ", want: StatePending},
		{name: "copied", input: "copied", want: StateCopied},
		{name: "invalid", input: "deleted", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLinkStateFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseLinkStateFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseLinkStateFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseLinkStateFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLinkValidate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	batchID := "018f7b7e-0000-7000-8000-000000000001"

	base := Link{
		ID:        "l-1",
		URL:       "https://shop.example/product/1",
		State:     StatePending,
		CreatedAt: now,
	}

	tests := []struct {
		name    string
		mutate  func(*Link)
		wantErr bool
	}{
		{
			name: "valid pending link",
			mutate: func(l *Link) {
				// keep base
			},
		},
		{
			name: "valid sent link",
			mutate: func(l *Link) {
				l.State = StateSent
				l.SentAt = &now
				l.BatchID = &batchID
			},
		},
		{
			name: "missing url",
			mutate: func(l *Link) {
				l.URL = "   "
			},
			wantErr: true,
		},
		{
			name: "url over limit",
			mutate: func(l *Link) {
				l.URL = "https://x/" + strings.Repeat("a", MaxURLLength)
			},
			wantErr: true,
		},
		{
			name: "invalid state",
			mutate: func(l *Link) {
				l.State = LinkState("DELETED")
			},
			wantErr: true,
		},
		{
			name: "pending with sent timestamp",
			mutate: func(l *Link) {
				l.SentAt = &now
			},
			wantErr: true,
		},
		{
			name: "sent without timestamp",
			mutate: func(l *Link) {
				l.State = StateSent
			},
			wantErr: true,
		},
		{
			name: "copied timestamp without sent",
			mutate: func(l *Link) {
				l.CopiedAt = &now
			},
			wantErr: true,
		},
		{
			name: "batch id without sent",
			mutate: func(l *Link) {
				l.BatchID = &batchID
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestLinkGroupLabel(t *testing.T) {
	t.Parallel()

	labelA := "HP-A"
	blank := "   "

	tests := []struct {
		name string
		link Link
		want string
	}{
		{name: "nil label", link: Link{}, want: UnassignedGroup},
		{name: "blank label", link: Link{DestinationLabel: &blank}, want: UnassignedGroup},
		{name: "assigned label", link: Link{DestinationLabel: &labelA}, want: "HP-A"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.link.GroupLabel(); got != tt.want {
				t.Fatalf("GroupLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSettingsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		maxPending int
		wantErr    bool
	}{
		{name: "default", maxPending: DefaultMaxPending},
		{name: "minimum", maxPending: MinMaxPending},
		{name: "below minimum", maxPending: MinMaxPending - 1, wantErr: true},
		{name: "zero", maxPending: 0, wantErr: true},
		{name: "negative", maxPending: -5, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := Settings{MaxPending: tt.maxPending}
			err := s.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestDestinationValidate(t *testing.T) {
	t.Parallel()

	display := "Warehouse phone"

	tests := []struct {
		name    string
		dest    Destination
		wantErr bool
	}{
		{
			name: "valid",
			dest: Destination{Label: "HP-A", DeliveryAddress: "+6281234567890", DisplayName: &display},
		},
		{
			name:    "missing label",
			dest:    Destination{DeliveryAddress: "+6281234567890"},
			wantErr: true,
		},
		{
			name:    "reserved label",
			dest:    Destination{Label: " unassigned ", DeliveryAddress: "+6281234567890"},
			wantErr: true,
		},
		{
			name:    "blank address",
			dest:    Destination{Label: "HP-A", DeliveryAddress: "   "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.dest.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}
