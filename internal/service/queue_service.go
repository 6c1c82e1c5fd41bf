package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linkrelay/internal/domain"
	"linkrelay/internal/notifier"
	"linkrelay/internal/observability"
	"linkrelay/internal/repository"
)

// QueueService is the link queue and batch dispatch engine. It is the sole
// writer of link lifecycle fields; ingestion adapters and handlers only go
// through its operations.
type QueueService struct {
	links        repository.LinkRepository
	settings     repository.SettingsRepository
	destinations repository.DestinationRepository
	notifier     notifier.Notifier
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
	newBatchID   func() string
}

// EnqueueResult reports the outcome of a single enqueue call.
type EnqueueResult struct {
	Added          bool
	AlreadyPresent bool
	PendingCount   int64
}

// BatchEnqueueResult reports per-item counts for a bulk enqueue.
type BatchEnqueueResult struct {
	Added               int
	AlreadyPresent      int
	RejectedForCapacity int
	Invalid             int
	PendingCount        int64
}

// AssignmentResult reports how many pending links received a label.
type AssignmentResult struct {
	Assigned int64
}

// PendingGroup is one destination-label slice of the pending queue,
// FIFO-ordered by creation time.
type PendingGroup struct {
	Label string
	Links []domain.Link
}

// QueueStatus is the administrator's review view of the queue.
type QueueStatus struct {
	PendingCount int64
	MaxPending   int
	Ready        bool
	Groups       []PendingGroup
}

// DispatchOutcome describes one dispatched batch. DeliveryErr carries a
// notifier failure; the Sent transition is never rolled back because of it.
type DispatchOutcome struct {
	BatchID     string
	Label       string
	URLs        []string
	Delivered   bool
	DeliveryErr error
}

func NewQueueService(
	links repository.LinkRepository,
	settings repository.SettingsRepository,
	destinations repository.DestinationRepository,
	dispatchNotifier notifier.Notifier,
	metrics *observability.Metrics,
	logger *zap.Logger,
) (*QueueService, error) {
	if links == nil {
		return nil, fmt.Errorf("link repository is required")
	}
	if settings == nil {
		return nil, fmt.Errorf("settings repository is required")
	}
	if destinations == nil {
		return nil, fmt.Errorf("destination repository is required")
	}
	if dispatchNotifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &QueueService{
		links:        links,
		settings:     settings,
		destinations: destinations,
		notifier:     dispatchNotifier,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		newBatchID:   newBatchID,
	}, nil
}

// newBatchID returns a time-ordered unique batch identifier so batches sort
// by dispatch time even when formed concurrently.
func newBatchID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Enqueue adds one url to the pending queue. Duplicates inside the pending
// set are reported as AlreadyPresent, not errors; a previously sent or
// discarded url may be re-enqueued and always starts over with only the
// explicit label hint.
func (s *QueueService) Enqueue(ctx context.Context, url string, labelHint string) (*EnqueueResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	link, err := s.buildPendingLink(url, labelHint)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	inserted, err := s.links.InsertPendingBelowLimit(ctx, link, settings.MaxPending)
	if err != nil {
		return nil, err
	}

	count, err := s.links.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	if inserted {
		s.metrics.IncLinkEnqueued("added")
		s.metrics.SetPendingLinks(float64(count))
		return &EnqueueResult{Added: true, PendingCount: count}, nil
	}

	exists, err := s.links.ExistsPending(ctx, link.URL)
	if err != nil {
		return nil, err
	}
	if exists {
		s.metrics.IncLinkEnqueued("duplicate")
		return &EnqueueResult{AlreadyPresent: true, PendingCount: count}, nil
	}

	s.metrics.IncLinkEnqueued("capacity")
	return nil, fmt.Errorf("%w: pending queue holds %d of %d links", domain.ErrCapacityExceeded, count, settings.MaxPending)
}

// EnqueueBatch applies Enqueue semantics to each url in input order. The
// available capacity is snapshotted once at call entry so one large
// ingestion is not starved by re-checks, and the snapshot is never
// exceeded; the conditional insert still enforces the global limit under
// concurrent callers.
func (s *QueueService) EnqueueBatch(ctx context.Context, urls []string) (*BatchEnqueueResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := s.links.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	available := int64(settings.MaxPending) - pending
	if available < 0 {
		available = 0
	}

	result := &BatchEnqueueResult{}
	for _, raw := range urls {
		url := strings.TrimSpace(raw)
		if url == "" {
			continue
		}

		if available == 0 {
			result.RejectedForCapacity++
			continue
		}

		link, err := s.buildPendingLink(url, "")
		if err != nil {
			// A bad row never aborts the rest of the batch.
			result.Invalid++
			continue
		}

		inserted, err := s.links.InsertPendingBelowLimit(ctx, link, settings.MaxPending)
		if err != nil {
			return nil, err
		}
		if inserted {
			result.Added++
			available--
			s.metrics.IncLinkEnqueued("added")
			continue
		}

		exists, err := s.links.ExistsPending(ctx, link.URL)
		if err != nil {
			return nil, err
		}
		if exists {
			result.AlreadyPresent++
			s.metrics.IncLinkEnqueued("duplicate")
			continue
		}

		// Another caller filled the queue under our snapshot.
		result.RejectedForCapacity++
		available = 0
		s.metrics.IncLinkEnqueued("capacity")
	}

	count, err := s.links.CountPending(ctx)
	if err != nil {
		return nil, err
	}
	result.PendingCount = count
	s.metrics.SetPendingLinks(float64(count))

	return result, nil
}

// AssignDestinationLabel pre-stages up to count unlabeled pending links for
// a destination, oldest first. Existing labels are never overwritten.
func (s *QueueService) AssignDestinationLabel(ctx context.Context, label string, count int) (*AssignmentResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("%w: label is required", domain.ErrValidation)
	}
	if strings.EqualFold(label, domain.UnassignedGroup) {
		return nil, fmt.Errorf("%w: label %q is reserved", domain.ErrValidation, domain.UnassignedGroup)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", domain.ErrValidation)
	}

	assigned, err := s.links.AssignLabelOldestFirst(ctx, label, count)
	if err != nil {
		return nil, err
	}

	return &AssignmentResult{Assigned: assigned}, nil
}

// ListPendingGroupedByDestination groups the pending queue by destination
// label. Unlabeled links fall into the implicit UNASSIGNED group, which
// always sorts last; labeled groups sort alphabetically. Links keep FIFO
// order inside each group.
func (s *QueueService) ListPendingGroupedByDestination(ctx context.Context) ([]PendingGroup, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	links, err := s.links.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	byLabel := make(map[string][]domain.Link)
	for _, link := range links {
		label := link.GroupLabel()
		byLabel[label] = append(byLabel[label], link)
	}

	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		if label == domain.UnassignedGroup {
			continue
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	if _, ok := byLabel[domain.UnassignedGroup]; ok {
		labels = append(labels, domain.UnassignedGroup)
	}

	groups := make([]PendingGroup, 0, len(labels))
	for _, label := range labels {
		groups = append(groups, PendingGroup{Label: label, Links: byLabel[label]})
	}
	return groups, nil
}

// Status composes the administrator view: total pending count, configured
// threshold, whether at least one group is ready, and the grouped queue.
func (s *QueueService) Status(ctx context.Context) (*QueueStatus, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.ListPendingGroupedByDestination(ctx)
	if err != nil {
		return nil, err
	}

	var pending int64
	ready := false
	for _, group := range groups {
		pending += int64(len(group.Links))
		if len(group.Links) >= settings.MaxPending {
			ready = true
		}
	}

	return &QueueStatus{
		PendingCount: pending,
		MaxPending:   settings.MaxPending,
		Ready:        ready,
		Groups:       groups,
	}, nil
}

// TryDispatch forms a batch from every destination group holding at least
// batchSize pending links. Selection and the Pending -> Sent transition are
// atomic per group; the notifier is invoked only after the transition has
// committed, and a notifier failure never rolls it back.
func (s *QueueService) TryDispatch(ctx context.Context, batchSize int) ([]DispatchOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive", domain.ErrValidation)
	}

	groups, err := s.ListPendingGroupedByDestination(ctx)
	if err != nil {
		return nil, err
	}

	outcomes := make([]DispatchOutcome, 0, len(groups))
	for _, group := range groups {
		if len(group.Links) < batchSize {
			continue
		}

		repoLabel := group.Label
		if repoLabel == domain.UnassignedGroup {
			repoLabel = ""
		}

		batchID := s.newBatchID()
		sentAt := s.now().UTC()

		selected, err := s.links.SelectAndMarkSent(ctx, repoLabel, batchSize, batchID, sentAt)
		if err != nil {
			return outcomes, err
		}
		if len(selected) == 0 {
			// A concurrent dispatch drained the group first.
			continue
		}

		urls := make([]string, 0, len(selected))
		for _, link := range selected {
			urls = append(urls, link.URL)
		}

		outcome := s.deliverBatch(ctx, batchID, group.Label, urls)
		outcomes = append(outcomes, outcome)
	}

	if count, err := s.links.CountPending(ctx); err == nil {
		s.metrics.SetPendingLinks(float64(count))
	}

	return outcomes, nil
}

// PollRecentBatches reconstructs batches from sent links whose dispatch
// time falls inside the trailing window, most recent first.
func (s *QueueService) PollRecentBatches(ctx context.Context, window time.Duration) ([]domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", domain.ErrValidation)
	}

	since := s.now().UTC().Add(-window)
	links, err := s.links.ListSentSince(ctx, since)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0)
	byID := make(map[string]*domain.Batch)
	for _, link := range links {
		if link.BatchID == nil || link.SentAt == nil {
			continue
		}

		id := *link.BatchID
		batch, ok := byID[id]
		if !ok {
			batch = &domain.Batch{
				ID:       id,
				Label:    link.GroupLabel(),
				SentAt:   *link.SentAt,
				CopiedAt: link.CopiedAt,
			}
			byID[id] = batch
			order = append(order, id)
		}
		batch.Links = append(batch.Links, link)
	}

	batches := make([]domain.Batch, 0, len(order))
	for _, id := range order {
		batches = append(batches, *byID[id])
	}
	return batches, nil
}

// AcknowledgeCopied records the consumer's copied acknowledgment for a
// whole batch. Idempotent: re-acknowledging, or acknowledging an unknown
// batch id, is a successful no-op.
func (s *QueueService) AcknowledgeCopied(ctx context.Context, batchID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	affected, err := s.links.MarkBatchCopied(ctx, batchID, s.now().UTC())
	if err != nil {
		return err
	}

	if affected > 0 {
		s.logger.Info("batch acknowledged as copied",
			zap.String("batchId", batchID),
			zap.Int64("links", affected),
		)
	}
	return nil
}

// DiscardBatch permanently removes every link of a delivered batch.
// Unknown batch ids succeed as no-ops so consumers may retry.
func (s *QueueService) DiscardBatch(ctx context.Context, batchID string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	removed, err := s.links.DeleteBatch(ctx, batchID)
	if err != nil {
		return err
	}

	if removed > 0 {
		s.logger.Info("batch discarded",
			zap.String("batchId", batchID),
			zap.Int64("links", removed),
		)
	}
	return nil
}

// ClearAllPending is the administrative escape hatch: it removes every
// pending link unconditionally and reports how many were deleted.
func (s *QueueService) ClearAllPending(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	removed, err := s.links.DeleteAllPending(ctx)
	if err != nil {
		return 0, err
	}

	s.metrics.SetPendingLinks(0)
	s.logger.Info("pending queue cleared", zap.Int64("links", removed))
	return removed, nil
}

// RedispatchBatch re-delivers the notification for an existing sent batch
// without changing its membership. This is the operator retry for
// delivered-but-unconfirmed batches.
func (s *QueueService) RedispatchBatch(ctx context.Context, batchID string) (*DispatchOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	links, err := s.links.ListByBatchID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%w: batch %q", domain.ErrNotFound, batchID)
	}

	urls := make([]string, 0, len(links))
	for _, link := range links {
		urls = append(urls, link.URL)
	}

	outcome := s.deliverBatch(ctx, batchID, links[0].GroupLabel(), urls)
	return &outcome, nil
}

func (s *QueueService) deliverBatch(ctx context.Context, batchID string, label string, urls []string) DispatchOutcome {
	outcome := DispatchOutcome{
		BatchID: batchID,
		Label:   label,
		URLs:    urls,
	}

	address := ""
	if label != domain.UnassignedGroup {
		// Re-read the registry on every dispatch so administrator edits
		// take effect immediately.
		dest, err := s.destinations.GetByLabel(ctx, label)
		switch {
		case err == nil:
			address = dest.DeliveryAddress
		case errors.Is(err, domain.ErrNotFound):
			outcome.DeliveryErr = fmt.Errorf("%w: destination %q", domain.ErrNotFound, label)
			s.metrics.IncDispatchFailed(label, "destination_not_found")
			s.logger.Warn("batch dispatched without registered destination",
				zap.String("batchId", batchID),
				zap.String("label", label),
			)
			return outcome
		default:
			outcome.DeliveryErr = err
			s.metrics.IncDispatchFailed(label, "registry_error")
			return outcome
		}
	}

	start := s.now()
	receipt, err := s.notifier.Deliver(ctx, notifier.Delivery{
		BatchID: batchID,
		Label:   label,
		Address: address,
		URLs:    urls,
	})
	s.metrics.ObserveDispatchDuration(label, s.now().Sub(start))

	if err != nil {
		outcome.DeliveryErr = err
		reason := "permanent_error"
		if notifier.IsTransient(err) {
			reason = "transient_error"
		}
		s.metrics.IncDispatchFailed(label, reason)
		s.logger.Error("batch delivery failed, links remain sent",
			zap.String("batchId", batchID),
			zap.String("label", label),
			zap.Int("links", len(urls)),
			zap.Error(err),
		)
		return outcome
	}

	outcome.Delivered = true
	s.metrics.IncBatchDispatched(label)
	s.logger.Info("batch dispatched",
		zap.String("batchId", batchID),
		zap.String("label", label),
		zap.Int("links", len(urls)),
		zap.Int("notifierStatus", receipt.StatusCode),
	)
	return outcome
}

func (s *QueueService) buildPendingLink(url string, labelHint string) (*domain.Link, error) {
	url = strings.TrimSpace(url)
	labelHint = strings.TrimSpace(labelHint)

	link := &domain.Link{
		ID:        uuid.NewString(),
		URL:       url,
		State:     domain.StatePending,
		CreatedAt: s.now().UTC(),
	}
	if labelHint != "" {
		if strings.EqualFold(labelHint, domain.UnassignedGroup) {
			return nil, fmt.Errorf("%w: label %q is reserved", domain.ErrValidation, domain.UnassignedGroup)
		}
		link.DestinationLabel = &labelHint
	}

	if err := link.Validate(); err != nil {
		return nil, err
	}
	return link, nil
}
