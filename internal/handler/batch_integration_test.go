package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"linkrelay/internal/domain"
	"linkrelay/internal/service"
	"linkrelay/internal/transport"
)

type stubBatchConsumer struct {
	pollFn       func(ctx context.Context, window time.Duration) ([]domain.Batch, error)
	ackFn        func(ctx context.Context, batchID string) error
	discardFn    func(ctx context.Context, batchID string) error
	redispatchFn func(ctx context.Context, batchID string) (*service.DispatchOutcome, error)
}

func (s *stubBatchConsumer) PollRecentBatches(ctx context.Context, window time.Duration) ([]domain.Batch, error) {
	if s.pollFn != nil {
		return s.pollFn(ctx, window)
	}
	return nil, errors.New("not implemented")
}

func (s *stubBatchConsumer) AcknowledgeCopied(ctx context.Context, batchID string) error {
	if s.ackFn != nil {
		return s.ackFn(ctx, batchID)
	}
	return errors.New("not implemented")
}

func (s *stubBatchConsumer) DiscardBatch(ctx context.Context, batchID string) error {
	if s.discardFn != nil {
		return s.discardFn(ctx, batchID)
	}
	return errors.New("not implemented")
}

func (s *stubBatchConsumer) RedispatchBatch(ctx context.Context, batchID string) (*service.DispatchOutcome, error) {
	if s.redispatchFn != nil {
		return s.redispatchFn(ctx, batchID)
	}
	return nil, errors.New("not implemented")
}

func newBatchTestApp(t *testing.T, consumer BatchConsumer) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterBatchRoutes(app, consumer); err != nil {
		t.Fatalf("RegisterBatchRoutes() error = %v", err)
	}
	return app
}

func TestBatchIntegration_PollBatches(t *testing.T) {
	t.Parallel()

	sentAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var gotWindow time.Duration
	consumer := &stubBatchConsumer{
		pollFn: func(ctx context.Context, window time.Duration) ([]domain.Batch, error) {
			gotWindow = window
			return []domain.Batch{
				{
					ID:     "batch-1",
					Label:  "HP-A",
					SentAt: sentAt,
					Links: []domain.Link{
						{ID: "l1", URL: "https://a"},
						{ID: "l2", URL: "https://b"},
					},
				},
			}, nil
		},
	}
	app := newBatchTestApp(t, consumer)

	resp, body := performRequest(t, app, http.MethodGet, "/v1/batches?window=15m", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if gotWindow != 15*time.Minute {
		t.Fatalf("window = %v, want 15m", gotWindow)
	}

	var result pollBatchesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(result.Batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(result.Batches))
	}
	batch := result.Batches[0]
	if batch.BatchID != "batch-1" || batch.Count != 2 || len(batch.URLs) != 2 {
		t.Fatalf("batch = %+v", batch)
	}
	if batch.CopiedAt != nil {
		t.Fatalf("CopiedAt = %v, want omitted", batch.CopiedAt)
	}

	// Default window applies when the query parameter is absent.
	resp, _ = performRequest(t, app, http.MethodGet, "/v1/batches", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotWindow != defaultPollWindow {
		t.Fatalf("window = %v, want default %v", gotWindow, defaultPollWindow)
	}

	resp, _ = performRequest(t, app, http.MethodGet, "/v1/batches?window=bogus", "")
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for bad window", resp.StatusCode)
	}
}

func TestBatchIntegration_AcknowledgeCopied(t *testing.T) {
	t.Parallel()

	var gotBatchID string
	consumer := &stubBatchConsumer{
		ackFn: func(ctx context.Context, batchID string) error {
			gotBatchID = batchID
			return nil
		},
	}
	app := newBatchTestApp(t, consumer)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/batches/batch-1/copied", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}
	if gotBatchID != "batch-1" {
		t.Fatalf("batchID = %q, want batch-1", gotBatchID)
	}
}

func TestBatchIntegration_Redispatch(t *testing.T) {
	t.Parallel()

	consumer := &stubBatchConsumer{
		redispatchFn: func(ctx context.Context, batchID string) (*service.DispatchOutcome, error) {
			if batchID == "missing" {
				return nil, fmt.Errorf("%w: batch %q", domain.ErrNotFound, batchID)
			}
			return &service.DispatchOutcome{
				BatchID:   batchID,
				Label:     "HP-A",
				URLs:      []string{"https://a"},
				Delivered: true,
			}, nil
		},
	}
	app := newBatchTestApp(t, consumer)

	resp, body := performRequest(t, app, http.MethodPost, "/v1/batches/batch-1/redispatch", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var outcome dispatchOutcomeItem
	if err := json.Unmarshal(body, &outcome); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if !outcome.Delivered || outcome.BatchID != "batch-1" {
		t.Fatalf("outcome = %+v", outcome)
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/v1/batches/missing/redispatch", "")
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown batch", resp.StatusCode)
	}
}

func TestBatchIntegration_Discard(t *testing.T) {
	t.Parallel()

	var gotBatchID string
	consumer := &stubBatchConsumer{
		discardFn: func(ctx context.Context, batchID string) error {
			gotBatchID = batchID
			return nil
		},
	}
	app := newBatchTestApp(t, consumer)

	resp, _ := performRequest(t, app, http.MethodDelete, "/v1/batches/batch-1", "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotBatchID != "batch-1" {
		t.Fatalf("batchID = %q, want batch-1", gotBatchID)
	}
}
