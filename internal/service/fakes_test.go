package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"linkrelay/internal/domain"
	"linkrelay/internal/notifier"
)

// memLinkRepo is an in-memory LinkRepository honoring the same atomicity
// contract as the SQL implementation: conditional insert under a capacity
// limit and single-winner batch selection.
type memLinkRepo struct {
	mu    sync.Mutex
	links []domain.Link

	insertErr error
	listErr   error
}

func (r *memLinkRepo) InsertPendingBelowLimit(ctx context.Context, link *domain.Link, maxPending int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertErr != nil {
		return false, r.insertErr
	}

	pending := 0
	for _, l := range r.links {
		if l.SentAt == nil {
			if l.URL == link.URL {
				return false, nil
			}
			pending++
		}
	}
	if pending >= maxPending {
		return false, nil
	}

	r.links = append(r.links, *link)
	return true, nil
}

func (r *memLinkRepo) ExistsPending(ctx context.Context, url string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.links {
		if l.SentAt == nil && l.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (r *memLinkRepo) CountPending(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for _, l := range r.links {
		if l.SentAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *memLinkRepo) ListPending(ctx context.Context) ([]domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.listErr != nil {
		return nil, r.listErr
	}

	var out []domain.Link
	for _, l := range r.links {
		if l.SentAt == nil {
			out = append(out, l)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *memLinkRepo) AssignLabelOldestFirst(ctx context.Context, label string, count int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := make([]int, 0)
	for i := range r.links {
		if r.links[i].SentAt == nil && r.links[i].DestinationLabel == nil {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool {
		return r.links[idx[a]].CreatedAt.Before(r.links[idx[b]].CreatedAt)
	})

	var assigned int64
	for _, i := range idx {
		if assigned >= int64(count) {
			break
		}
		labelCopy := label
		r.links[i].DestinationLabel = &labelCopy
		assigned++
	}
	return assigned, nil
}

func (r *memLinkRepo) SelectAndMarkSent(ctx context.Context, label string, batchSize int, batchID string, sentAt time.Time) ([]domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := make([]int, 0)
	for i := range r.links {
		if r.links[i].SentAt != nil {
			continue
		}
		current := ""
		if r.links[i].DestinationLabel != nil {
			current = strings.TrimSpace(*r.links[i].DestinationLabel)
		}
		if current == label {
			idx = append(idx, i)
		}
	}
	if len(idx) < batchSize {
		return nil, nil
	}

	sort.Slice(idx, func(a, b int) bool {
		return r.links[idx[a]].CreatedAt.Before(r.links[idx[b]].CreatedAt)
	})
	idx = idx[:batchSize]

	out := make([]domain.Link, 0, batchSize)
	for _, i := range idx {
		ts := sentAt
		id := batchID
		r.links[i].State = domain.StateSent
		r.links[i].SentAt = &ts
		r.links[i].BatchID = &id
		out = append(out, r.links[i])
	}
	return out, nil
}

func (r *memLinkRepo) ListSentSince(ctx context.Context, since time.Time) ([]domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Link
	for _, l := range r.links {
		if l.SentAt != nil && !l.SentAt.Before(since) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].SentAt.Equal(*out[b].SentAt) {
			return out[a].SentAt.After(*out[b].SentAt)
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (r *memLinkRepo) ListByBatchID(ctx context.Context, batchID string) ([]domain.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []domain.Link
	for _, l := range r.links {
		if l.BatchID != nil && *l.BatchID == batchID {
			out = append(out, l)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (r *memLinkRepo) MarkBatchCopied(ctx context.Context, batchID string, copiedAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	for i := range r.links {
		if r.links[i].BatchID != nil && *r.links[i].BatchID == batchID && r.links[i].CopiedAt == nil {
			ts := copiedAt
			r.links[i].State = domain.StateCopied
			r.links[i].CopiedAt = &ts
			affected++
		}
	}
	return affected, nil
}

func (r *memLinkRepo) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.links[:0]
	var removed int64
	for _, l := range r.links {
		if l.BatchID != nil && *l.BatchID == batchID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.links = kept
	return removed, nil
}

func (r *memLinkRepo) DeleteAllPending(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.links[:0]
	var removed int64
	for _, l := range r.links {
		if l.SentAt == nil {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.links = kept
	return removed, nil
}

func (r *memLinkRepo) snapshot() []domain.Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Link, len(r.links))
	copy(out, r.links)
	return out
}

func sortByCreated(links []domain.Link) {
	sort.SliceStable(links, func(a, b int) bool {
		return links[a].CreatedAt.Before(links[b].CreatedAt)
	})
}

type fakeSettingsRepo struct {
	maxPending int
	getErr     error
	setErr     error

	setCalls []int
}

func (r *fakeSettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	max := r.maxPending
	if max == 0 {
		max = domain.DefaultMaxPending
	}
	return &domain.Settings{MaxPending: max}, nil
}

func (r *fakeSettingsRepo) SetMaxPending(ctx context.Context, maxPending int) error {
	if r.setErr != nil {
		return r.setErr
	}
	r.maxPending = maxPending
	r.setCalls = append(r.setCalls, maxPending)
	return nil
}

type fakeDestinationRepo struct {
	dests map[string]domain.Destination

	upserts []domain.Destination
}

func (r *fakeDestinationRepo) Upsert(ctx context.Context, dest *domain.Destination) error {
	if r.dests == nil {
		r.dests = make(map[string]domain.Destination)
	}
	r.dests[dest.Label] = *dest
	r.upserts = append(r.upserts, *dest)
	return nil
}

func (r *fakeDestinationRepo) GetByLabel(ctx context.Context, label string) (*domain.Destination, error) {
	dest, ok := r.dests[label]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &dest, nil
}

func (r *fakeDestinationRepo) ListAll(ctx context.Context) ([]domain.Destination, error) {
	out := make([]domain.Destination, 0, len(r.dests))
	for _, d := range r.dests {
		out = append(out, d)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Label < out[b].Label })
	return out, nil
}

type fakeNotifier struct {
	mu         sync.Mutex
	deliveries []notifier.Delivery
	deliverFn  func(ctx context.Context, d notifier.Delivery) (*notifier.DeliveryReceipt, error)
}

func (n *fakeNotifier) Deliver(ctx context.Context, d notifier.Delivery) (*notifier.DeliveryReceipt, error) {
	n.mu.Lock()
	n.deliveries = append(n.deliveries, d)
	n.mu.Unlock()

	if n.deliverFn != nil {
		return n.deliverFn(ctx, d)
	}
	return &notifier.DeliveryReceipt{StatusCode: 200}, nil
}

func (n *fakeNotifier) delivered() []notifier.Delivery {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]notifier.Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}

// testClock hands out strictly increasing timestamps so FIFO ordering is
// deterministic in tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Millisecond)
	return c.now
}
