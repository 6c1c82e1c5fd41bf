package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"linkrelay/internal/domain"
)

const defaultDispatchScanInterval = 15 * time.Second

type dispatchRunner interface {
	TryDispatch(ctx context.Context, batchSize int) ([]DispatchOutcome, error)
}

type settingsReader interface {
	Get(ctx context.Context) (*domain.Settings, error)
}

// DispatchScheduler periodically checks whether any destination group has
// reached the configured threshold and dispatches full batches. The
// threshold is re-read every scan so capacity changes apply without a
// restart.
type DispatchScheduler struct {
	engine   dispatchRunner
	settings settingsReader
	logger   *zap.Logger
	interval time.Duration
}

func NewDispatchScheduler(
	engine dispatchRunner,
	settings settingsReader,
	interval time.Duration,
	logger *zap.Logger,
) (*DispatchScheduler, error) {
	if interval <= 0 {
		interval = defaultDispatchScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DispatchScheduler{
		engine:   engine,
		settings: settings,
		logger:   logger,
		interval: interval,
	}, nil
}

func (s *DispatchScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scanOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("dispatch scheduler initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("dispatch scheduler scan failed", zap.Error(err))
			}
		}
	}
}

func (s *DispatchScheduler) scanOnce(ctx context.Context) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}

	outcomes, err := s.engine.TryDispatch(ctx, settings.MaxPending)
	if err != nil {
		return err
	}

	for _, outcome := range outcomes {
		if outcome.DeliveryErr != nil {
			s.logger.Warn("scheduled dispatch delivered-but-unconfirmed",
				zap.String("batchId", outcome.BatchID),
				zap.String("label", outcome.Label),
				zap.Error(outcome.DeliveryErr),
			)
			continue
		}
		s.logger.Info("scheduled dispatch completed",
			zap.String("batchId", outcome.BatchID),
			zap.String("label", outcome.Label),
			zap.Int("links", len(outcome.URLs)),
		)
	}
	return nil
}
