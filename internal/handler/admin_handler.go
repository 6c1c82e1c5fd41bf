package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"linkrelay/internal/domain"
)

// SettingsAdmin manages the queue capacity configuration.
type SettingsAdmin interface {
	Get(ctx context.Context) (*domain.Settings, error)
	SetMaxPending(ctx context.Context, maxPending int) error
}

// DestinationAdmin manages the destination registry.
type DestinationAdmin interface {
	Upsert(ctx context.Context, label string, deliveryAddress string, displayName *string) (*domain.Destination, error)
	Get(ctx context.Context, label string) (*domain.Destination, error)
	ListAll(ctx context.Context) ([]domain.Destination, error)
}

type AdminHandler struct {
	settings     SettingsAdmin
	destinations DestinationAdmin
}

func NewAdminHandler(settings SettingsAdmin, destinations DestinationAdmin) (*AdminHandler, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings admin is required")
	}
	if destinations == nil {
		return nil, fmt.Errorf("destination admin is required")
	}
	return &AdminHandler{settings: settings, destinations: destinations}, nil
}

func RegisterAdminRoutes(router fiber.Router, settings SettingsAdmin, destinations DestinationAdmin) error {
	h, err := NewAdminHandler(settings, destinations)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/settings", h.GetSettings)
	v1.Put("/settings", h.UpdateSettings)
	v1.Get("/destinations", h.ListDestinations)
	v1.Put("/destinations", h.UpsertDestination)
	v1.Get("/destinations/:label", h.GetDestination)

	return nil
}

type settingsResponse struct {
	MaxPending int       `json:"maxPending"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type updateSettingsRequest struct {
	MaxPending int `json:"maxPending"`
}

type destinationRequest struct {
	Label           string  `json:"label"`
	DeliveryAddress string  `json:"deliveryAddress"`
	DisplayName     *string `json:"displayName,omitempty"`
}

type destinationResponse struct {
	Label           string  `json:"label"`
	DeliveryAddress string  `json:"deliveryAddress"`
	DisplayName     *string `json:"displayName,omitempty"`
}

func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(settingsResponse{
		MaxPending: settings.MaxPending,
		UpdatedAt:  settings.UpdatedAt,
	})
}

func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var req updateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.settings.SetMaxPending(c.Context(), req.MaxPending); err != nil {
		return err
	}

	settings, err := h.settings.Get(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(settingsResponse{
		MaxPending: settings.MaxPending,
		UpdatedAt:  settings.UpdatedAt,
	})
}

func (h *AdminHandler) ListDestinations(c *fiber.Ctx) error {
	destinations, err := h.destinations.ListAll(c.Context())
	if err != nil {
		return err
	}

	items := make([]destinationResponse, 0, len(destinations))
	for _, dest := range destinations {
		items = append(items, toDestinationResponse(&dest))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"destinations": items,
	})
}

func (h *AdminHandler) UpsertDestination(c *fiber.Ctx) error {
	var req destinationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	dest, err := h.destinations.Upsert(c.Context(), req.Label, req.DeliveryAddress, req.DisplayName)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toDestinationResponse(dest))
}

func (h *AdminHandler) GetDestination(c *fiber.Ctx) error {
	label := strings.TrimSpace(c.Params("label"))
	dest, err := h.destinations.Get(c.Context(), label)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusOK).JSON(toDestinationResponse(dest))
}

func toDestinationResponse(dest *domain.Destination) destinationResponse {
	if dest == nil {
		return destinationResponse{}
	}
	return destinationResponse{
		Label:           dest.Label,
		DeliveryAddress: dest.DeliveryAddress,
		DisplayName:     dest.DisplayName,
	}
}
