package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"linkrelay/internal/domain"
	"linkrelay/internal/service"
)

const defaultPollWindow = 30 * time.Minute

// BatchConsumer is the consumer-side surface: poll what was dispatched,
// acknowledge it, or get rid of it.
type BatchConsumer interface {
	PollRecentBatches(ctx context.Context, window time.Duration) ([]domain.Batch, error)
	AcknowledgeCopied(ctx context.Context, batchID string) error
	DiscardBatch(ctx context.Context, batchID string) error
	RedispatchBatch(ctx context.Context, batchID string) (*service.DispatchOutcome, error)
}

type BatchHandler struct {
	consumer BatchConsumer
}

func NewBatchHandler(consumer BatchConsumer) (*BatchHandler, error) {
	if consumer == nil {
		return nil, fmt.Errorf("batch consumer is required")
	}
	return &BatchHandler{consumer: consumer}, nil
}

func RegisterBatchRoutes(router fiber.Router, consumer BatchConsumer) error {
	h, err := NewBatchHandler(consumer)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/batches", h.PollBatches)
	v1.Post("/batches/:batchId/copied", h.AcknowledgeCopied)
	v1.Post("/batches/:batchId/redispatch", h.Redispatch)
	v1.Delete("/batches/:batchId", h.DiscardBatch)

	return nil
}

type batchItem struct {
	BatchID  string     `json:"batchId"`
	Label    string     `json:"label"`
	SentAt   time.Time  `json:"sentAt"`
	CopiedAt *time.Time `json:"copiedAt,omitempty"`
	Count    int        `json:"count"`
	URLs     []string   `json:"urls"`
}

type pollBatchesResponse struct {
	Window  string      `json:"window"`
	Batches []batchItem `json:"batches"`
}

func (h *BatchHandler) PollBatches(c *fiber.Ctx) error {
	window := defaultPollWindow
	if raw := strings.TrimSpace(c.Query("window")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: window must be a duration", domain.ErrValidation)
		}
		window = parsed
	}

	batches, err := h.consumer.PollRecentBatches(c.Context(), window)
	if err != nil {
		return err
	}

	items := make([]batchItem, 0, len(batches))
	for _, batch := range batches {
		items = append(items, batchItem{
			BatchID:  batch.ID,
			Label:    batch.Label,
			SentAt:   batch.SentAt,
			CopiedAt: batch.CopiedAt,
			Count:    len(batch.Links),
			URLs:     batch.URLs(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(pollBatchesResponse{
		Window:  window.String(),
		Batches: items,
	})
}

func (h *BatchHandler) AcknowledgeCopied(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	if err := h.consumer.AcknowledgeCopied(c.Context(), batchID); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"batchId": batchID,
		"copied":  true,
	})
}

func (h *BatchHandler) Redispatch(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	outcome, err := h.consumer.RedispatchBatch(c.Context(), batchID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toDispatchOutcomeItem(*outcome))
}

func (h *BatchHandler) DiscardBatch(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	if err := h.consumer.DiscardBatch(c.Context(), batchID); err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"batchId":   batchID,
		"discarded": true,
	})
}
