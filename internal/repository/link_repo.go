package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linkrelay/internal/domain"
)

// LinkRepository is the storage contract for the link lifecycle. The two
// write primitives the engine leans on are atomic by contract:
// InsertPendingBelowLimit never lets the pending count exceed the limit,
// and SelectAndMarkSent never hands the same link to two dispatches.
type LinkRepository interface {
	InsertPendingBelowLimit(ctx context.Context, link *domain.Link, maxPending int) (bool, error)
	ExistsPending(ctx context.Context, url string) (bool, error)
	CountPending(ctx context.Context) (int64, error)
	ListPending(ctx context.Context) ([]domain.Link, error)
	AssignLabelOldestFirst(ctx context.Context, label string, count int) (int64, error)
	SelectAndMarkSent(ctx context.Context, label string, batchSize int, batchID string, sentAt time.Time) ([]domain.Link, error)
	ListSentSince(ctx context.Context, since time.Time) ([]domain.Link, error)
	ListByBatchID(ctx context.Context, batchID string) ([]domain.Link, error)
	MarkBatchCopied(ctx context.Context, batchID string, copiedAt time.Time) (int64, error)
	DeleteBatch(ctx context.Context, batchID string) (int64, error)
	DeleteAllPending(ctx context.Context) (int64, error)
}

type GormLinkRepo struct {
	db *gorm.DB
}

func NewGormLinkRepo(db *gorm.DB) *GormLinkRepo {
	return &GormLinkRepo{db: db}
}

// InsertPendingBelowLimit inserts the link as pending in a single conditional
// statement: the row lands only if no pending link with the same url exists
// and the pending count is still below maxPending. Capacity check and
// reservation happen inside one statement so concurrent enqueues cannot
// overshoot the limit.
func (r *GormLinkRepo) InsertPendingBelowLimit(ctx context.Context, link *domain.Link, maxPending int) (bool, error) {
	if link == nil {
		return false, fmt.Errorf("%w: link is required", domain.ErrValidation)
	}

	model := linkModelFromDomain(link)
	result := r.db.WithContext(ctx).Exec(
		`INSERT INTO links (id, url, state, destination_label, batch_id, created_at, sent_at, copied_at)
		 SELECT ?, ?, ?, ?, NULL, ?, NULL, NULL
		 WHERE NOT EXISTS (SELECT 1 FROM links WHERE url = ? AND sent_at IS NULL)
		   AND (SELECT COUNT(*) FROM links WHERE sent_at IS NULL) < ?`,
		model.ID, model.URL, model.State, model.DestinationLabel, model.CreatedAt,
		model.URL, maxPending,
	)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *GormLinkRepo) ExistsPending(ctx context.Context, url string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&LinkModel{}).
		Where("url = ? AND sent_at IS NULL", url).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormLinkRepo) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&LinkModel{}).
		Where("sent_at IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormLinkRepo) ListPending(ctx context.Context) ([]domain.Link, error) {
	var models []LinkModel
	err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return linkModelsToDomain(models), nil
}

// AssignLabelOldestFirst labels up to count unlabeled pending links, oldest
// first. Already-labeled links are never overwritten.
func (r *GormLinkRepo) AssignLabelOldestFirst(ctx context.Context, label string, count int) (int64, error) {
	result := r.db.WithContext(ctx).Exec(
		`UPDATE links SET destination_label = ?
		 WHERE id IN (
		   SELECT id FROM links
		   WHERE sent_at IS NULL AND destination_label IS NULL
		   ORDER BY created_at ASC
		   LIMIT ?
		 )`,
		label, count,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// SelectAndMarkSent picks the oldest batchSize pending links of one
// destination group and transitions them to Sent inside a single
// transaction. The candidate rows are locked, then the update is keyed by
// the locked id list and the affected row count is verified, so no
// concurrent dispatch or enqueue can re-select the same links. An empty
// label selects the unassigned group. Returns nil when the group holds
// fewer than batchSize pending links.
func (r *GormLinkRepo) SelectAndMarkSent(ctx context.Context, label string, batchSize int, batchID string, sentAt time.Time) ([]domain.Link, error) {
	var models []LinkModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sent_at IS NULL")
		if label == "" {
			query = query.Where("destination_label IS NULL")
		} else {
			query = query.Where("destination_label = ?", label)
		}

		if err := query.Order("created_at ASC").Limit(batchSize).Find(&models).Error; err != nil {
			return err
		}
		if len(models) < batchSize {
			models = nil
			return nil
		}

		ids := make([]string, 0, len(models))
		for i := range models {
			ids = append(ids, models[i].ID)
		}

		result := tx.Model(&LinkModel{}).
			Where("id IN ? AND sent_at IS NULL", ids).
			Updates(map[string]any{
				"state":    domain.StateSent,
				"sent_at":  sentAt,
				"batch_id": batchID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("dispatch selection raced: marked %d of %d links", result.RowsAffected, len(ids))
		}

		for i := range models {
			models[i].State = domain.StateSent
			models[i].SentAt = &sentAt
			models[i].BatchID = &batchID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if models == nil {
		return nil, nil
	}
	return linkModelsToDomain(models), nil
}

func (r *GormLinkRepo) ListSentSince(ctx context.Context, since time.Time) ([]domain.Link, error) {
	var models []LinkModel
	err := r.db.WithContext(ctx).
		Where("sent_at IS NOT NULL AND sent_at >= ?", since).
		Order("sent_at DESC, created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return linkModelsToDomain(models), nil
}

func (r *GormLinkRepo) ListByBatchID(ctx context.Context, batchID string) ([]domain.Link, error) {
	var models []LinkModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return linkModelsToDomain(models), nil
}

// MarkBatchCopied stamps copied_at on every link of the batch that has not
// been acknowledged yet. Re-acknowledging matches zero rows and keeps the
// original timestamps.
func (r *GormLinkRepo) MarkBatchCopied(ctx context.Context, batchID string, copiedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&LinkModel{}).
		Where("batch_id = ? AND copied_at IS NULL", batchID).
		Updates(map[string]any{
			"state":     domain.StateCopied,
			"copied_at": copiedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormLinkRepo) DeleteBatch(ctx context.Context, batchID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Delete(&LinkModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormLinkRepo) DeleteAllPending(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Delete(&LinkModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
