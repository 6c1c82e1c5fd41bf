package handler

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"linkrelay/internal/domain"
	"linkrelay/internal/ingest"
)

type IngestHandler struct {
	engine QueueEngine
}

func NewIngestHandler(engine QueueEngine) (*IngestHandler, error) {
	if engine == nil {
		return nil, fmt.Errorf("queue engine is required")
	}
	return &IngestHandler{engine: engine}, nil
}

func RegisterIngestRoutes(router fiber.Router, engine QueueEngine) error {
	h, err := NewIngestHandler(engine)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/links/upload", h.UploadSpreadsheet)
	v1.Post("/links/filter-csv", h.FilterCSV)

	return nil
}

type uploadResponse struct {
	Added               int   `json:"added"`
	AlreadyPresent      int   `json:"alreadyPresent"`
	RejectedForCapacity int   `json:"rejectedForCapacity"`
	Unparseable         int   `json:"unparseable"`
	PendingCount        int64 `json:"pendingCount"`
}

type csvCandidateItem struct {
	URL    string `json:"url"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

type filterCSVResponse struct {
	Candidates []csvCandidateItem `json:"candidates"`
	AdCount    int                `json:"adCount"`
	SalesCount int                `json:"salesCount"`
	TotalCount int                `json:"totalCount"`
	Enqueued   *addLinksResponse  `json:"enqueued,omitempty"`
}

func (h *IngestHandler) UploadSpreadsheet(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: file is required", domain.ErrValidation)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	parsed, err := ingest.ParseSpreadsheet(file)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	result, err := h.engine.EnqueueBatch(c.Context(), parsed.URLs)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(uploadResponse{
		Added:               result.Added,
		AlreadyPresent:      result.AlreadyPresent,
		RejectedForCapacity: result.RejectedForCapacity,
		Unparseable:         parsed.Unparseable,
		PendingCount:        result.PendingCount,
	})
}

func (h *IngestHandler) FilterCSV(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid multipart form")
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		return fmt.Errorf("%w: files is required", domain.ErrValidation)
	}

	opts, err := parseCSVFilterOptions(form)
	if err != nil {
		return err
	}

	inputs := make([]ingest.CSVInput, 0, len(fileHeaders))
	closers := make([]multipart.File, 0, len(fileHeaders))
	defer func() {
		for _, f := range closers {
			f.Close()
		}
	}()

	for _, header := range fileHeaders {
		file, err := header.Open()
		if err != nil {
			return fmt.Errorf("failed to open upload %q: %w", header.Filename, err)
		}
		closers = append(closers, file)
		inputs = append(inputs, ingest.NewCSVInput(header.Filename, file))
	}

	filtered, err := ingest.FilterCSV(inputs, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	response := filterCSVResponse{
		Candidates: make([]csvCandidateItem, 0, len(filtered.Candidates)),
		AdCount:    filtered.AdCount,
		SalesCount: filtered.SalesCount,
		TotalCount: len(filtered.Candidates),
	}
	for _, candidate := range filtered.Candidates {
		response.Candidates = append(response.Candidates, csvCandidateItem{
			URL:    candidate.URL,
			Type:   candidate.Type,
			Source: candidate.Source,
		})
	}

	if formValue(form, "enqueue") == "true" && len(filtered.Candidates) > 0 {
		result, err := h.engine.EnqueueBatch(c.Context(), filtered.URLs())
		if err != nil {
			return err
		}
		enqueued := toAddLinksResponse(result)
		response.Enqueued = &enqueued
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

func parseCSVFilterOptions(form *multipart.Form) (ingest.CSVFilterOptions, error) {
	opts := ingest.CSVFilterOptions{RankFrom: 1, RankTo: 100}

	if raw := formValue(form, "rankFrom"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return opts, fmt.Errorf("%w: rankFrom must be a positive integer", domain.ErrValidation)
		}
		opts.RankFrom = parsed
	}
	if raw := formValue(form, "rankTo"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < opts.RankFrom {
			return opts, fmt.Errorf("%w: rankTo must be >= rankFrom", domain.ErrValidation)
		}
		opts.RankTo = parsed
	}
	return opts, nil
}

func formValue(form *multipart.Form, key string) string {
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
