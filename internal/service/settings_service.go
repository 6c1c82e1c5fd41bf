package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"linkrelay/internal/domain"
	"linkrelay/internal/repository"
)

// SettingsService wraps the singleton queue configuration. Changes apply to
// subsequent enqueue calls only and never evict already-pending links.
type SettingsService struct {
	settings repository.SettingsRepository
	logger   *zap.Logger
}

func NewSettingsService(settings repository.SettingsRepository, logger *zap.Logger) (*SettingsService, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SettingsService{
		settings: settings,
		logger:   logger,
	}, nil
}

func (s *SettingsService) Get(ctx context.Context) (*domain.Settings, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.settings.Get(ctx)
}

func (s *SettingsService) SetMaxPending(ctx context.Context, maxPending int) error {
	if ctx == nil {
		ctx = context.Background()
	}

	candidate := domain.Settings{MaxPending: maxPending}
	if err := candidate.Validate(); err != nil {
		return err
	}

	if err := s.settings.SetMaxPending(ctx, maxPending); err != nil {
		return err
	}

	s.logger.Info("queue capacity updated", zap.Int("maxPending", maxPending))
	return nil
}
