package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"linkrelay/internal/domain"
	"linkrelay/internal/repository"
)

// RegistryService manages the destination registry. Format constraints on
// delivery addresses belong to the notifier; the registry only enforces
// that addresses are non-empty after trimming.
type RegistryService struct {
	destinations repository.DestinationRepository
	logger       *zap.Logger
}

func NewRegistryService(destinations repository.DestinationRepository, logger *zap.Logger) (*RegistryService, error) {
	if destinations == nil {
		return nil, fmt.Errorf("destination repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RegistryService{
		destinations: destinations,
		logger:       logger,
	}, nil
}

func (s *RegistryService) Upsert(ctx context.Context, label string, deliveryAddress string, displayName *string) (*domain.Destination, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	dest := &domain.Destination{
		Label:           strings.TrimSpace(label),
		DeliveryAddress: strings.TrimSpace(deliveryAddress),
		DisplayName:     normalizeOptionalString(displayName),
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}

	if err := s.destinations.Upsert(ctx, dest); err != nil {
		return nil, err
	}

	s.logger.Info("destination upserted", zap.String("label", dest.Label))
	return dest, nil
}

func (s *RegistryService) Get(ctx context.Context, label string) (*domain.Destination, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", domain.ErrValidation)
	}

	dest, err := s.destinations.GetByLabel(ctx, label)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: destination %q", domain.ErrNotFound, label)
	}
	if err != nil {
		return nil, err
	}
	return dest, nil
}

func (s *RegistryService) ListAll(ctx context.Context) ([]domain.Destination, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.destinations.ListAll(ctx)
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
