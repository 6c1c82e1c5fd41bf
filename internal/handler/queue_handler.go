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

// QueueEngine is the queue surface the HTTP layer depends on.
type QueueEngine interface {
	Enqueue(ctx context.Context, url string, labelHint string) (*service.EnqueueResult, error)
	EnqueueBatch(ctx context.Context, urls []string) (*service.BatchEnqueueResult, error)
	AssignDestinationLabel(ctx context.Context, label string, count int) (*service.AssignmentResult, error)
	Status(ctx context.Context) (*service.QueueStatus, error)
	TryDispatch(ctx context.Context, batchSize int) ([]service.DispatchOutcome, error)
	ClearAllPending(ctx context.Context) (int64, error)
}

// SettingsReader supplies the configured threshold for manual dispatch.
type SettingsReader interface {
	Get(ctx context.Context) (*domain.Settings, error)
}

type QueueHandler struct {
	engine   QueueEngine
	settings SettingsReader
}

func NewQueueHandler(engine QueueEngine, settings SettingsReader) (*QueueHandler, error) {
	if engine == nil {
		return nil, fmt.Errorf("queue engine is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings reader is required")
	}
	return &QueueHandler{engine: engine, settings: settings}, nil
}

func RegisterQueueRoutes(router fiber.Router, engine QueueEngine, settings SettingsReader) error {
	h, err := NewQueueHandler(engine, settings)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/links", h.AddLink)
	v1.Post("/links/batch", h.AddLinks)
	v1.Get("/queue", h.QueueStatus)
	v1.Post("/queue/labels", h.AssignLabels)
	v1.Post("/queue/dispatch", h.Dispatch)
	v1.Delete("/queue/pending", h.ClearPending)

	return nil
}

type addLinkRequest struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

type addLinkResponse struct {
	Added          bool  `json:"added"`
	AlreadyPresent bool  `json:"alreadyPresent"`
	PendingCount   int64 `json:"pendingCount"`
}

type addLinksRequest struct {
	URLs []string `json:"urls"`
}

type addLinksResponse struct {
	Added               int   `json:"added"`
	AlreadyPresent      int   `json:"alreadyPresent"`
	RejectedForCapacity int   `json:"rejectedForCapacity"`
	Invalid             int   `json:"invalid"`
	PendingCount        int64 `json:"pendingCount"`
}

type assignLabelsRequest struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type pendingLinkItem struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

type pendingGroupItem struct {
	Label string            `json:"label"`
	Count int               `json:"count"`
	Links []pendingLinkItem `json:"links"`
}

type queueStatusResponse struct {
	PendingCount int64              `json:"pendingCount"`
	MaxPending   int                `json:"maxPending"`
	Ready        bool               `json:"ready"`
	Groups       []pendingGroupItem `json:"groups"`
}

type dispatchRequest struct {
	BatchSize int `json:"batchSize,omitempty"`
}

type dispatchOutcomeItem struct {
	BatchID   string   `json:"batchId"`
	Label     string   `json:"label"`
	URLs      []string `json:"urls"`
	Delivered bool     `json:"delivered"`
	Error     string   `json:"error,omitempty"`
}

type dispatchResponse struct {
	Dispatched int                   `json:"dispatched"`
	Outcomes   []dispatchOutcomeItem `json:"outcomes"`
}

func (h *QueueHandler) AddLink(c *fiber.Ctx) error {
	var req addLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.engine.Enqueue(c.Context(), req.URL, req.Label)
	if err != nil {
		return err
	}

	status := fiber.StatusCreated
	if result.AlreadyPresent {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(addLinkResponse{
		Added:          result.Added,
		AlreadyPresent: result.AlreadyPresent,
		PendingCount:   result.PendingCount,
	})
}

func (h *QueueHandler) AddLinks(c *fiber.Ctx) error {
	var req addLinksRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.URLs) == 0 {
		return fmt.Errorf("%w: urls is required", domain.ErrValidation)
	}

	result, err := h.engine.EnqueueBatch(c.Context(), req.URLs)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toAddLinksResponse(result))
}

func (h *QueueHandler) QueueStatus(c *fiber.Ctx) error {
	status, err := h.engine.Status(c.Context())
	if err != nil {
		return err
	}

	groups := make([]pendingGroupItem, 0, len(status.Groups))
	for _, group := range status.Groups {
		links := make([]pendingLinkItem, 0, len(group.Links))
		for _, link := range group.Links {
			links = append(links, pendingLinkItem{
				ID:        link.ID,
				URL:       link.URL,
				CreatedAt: link.CreatedAt,
			})
		}
		groups = append(groups, pendingGroupItem{
			Label: group.Label,
			Count: len(links),
			Links: links,
		})
	}

	return c.Status(fiber.StatusOK).JSON(queueStatusResponse{
		PendingCount: status.PendingCount,
		MaxPending:   status.MaxPending,
		Ready:        status.Ready,
		Groups:       groups,
	})
}

func (h *QueueHandler) AssignLabels(c *fiber.Ctx) error {
	var req assignLabelsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.engine.AssignDestinationLabel(c.Context(), req.Label, req.Count)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"label":    strings.TrimSpace(req.Label),
		"assigned": result.Assigned,
	})
}

func (h *QueueHandler) Dispatch(c *fiber.Ctx) error {
	var req dispatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}

	batchSize := req.BatchSize
	if batchSize == 0 {
		settings, err := h.settings.Get(c.Context())
		if err != nil {
			return err
		}
		batchSize = settings.MaxPending
	}

	outcomes, err := h.engine.TryDispatch(c.Context(), batchSize)
	if err != nil {
		return err
	}

	items := make([]dispatchOutcomeItem, 0, len(outcomes))
	for _, outcome := range outcomes {
		items = append(items, toDispatchOutcomeItem(outcome))
	}
	return c.Status(fiber.StatusOK).JSON(dispatchResponse{
		Dispatched: len(items),
		Outcomes:   items,
	})
}

func (h *QueueHandler) ClearPending(c *fiber.Ctx) error {
	removed, err := h.engine.ClearAllPending(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"removed": removed,
	})
}

func toAddLinksResponse(result *service.BatchEnqueueResult) addLinksResponse {
	if result == nil {
		return addLinksResponse{}
	}
	return addLinksResponse{
		Added:               result.Added,
		AlreadyPresent:      result.AlreadyPresent,
		RejectedForCapacity: result.RejectedForCapacity,
		Invalid:             result.Invalid,
		PendingCount:        result.PendingCount,
	}
}

func toDispatchOutcomeItem(outcome service.DispatchOutcome) dispatchOutcomeItem {
	item := dispatchOutcomeItem{
		BatchID:   outcome.BatchID,
		Label:     outcome.Label,
		URLs:      outcome.URLs,
		Delivered: outcome.Delivered,
	}
	if outcome.DeliveryErr != nil {
		item.Error = outcome.DeliveryErr.Error()
	}
	return item
}
