package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linkrelay/internal/domain"
)

const settingsRowID = 1

type SettingsRepository interface {
	Get(ctx context.Context) (*domain.Settings, error)
	SetMaxPending(ctx context.Context, maxPending int) error
}

type GormSettingsRepo struct {
	db *gorm.DB
}

func NewGormSettingsRepo(db *gorm.DB) *GormSettingsRepo {
	return &GormSettingsRepo{db: db}
}

// Get returns the singleton settings row, creating it with defaults on
// first read so callers always receive a value.
func (r *GormSettingsRepo) Get(ctx context.Context) (*domain.Settings, error) {
	var model SettingsModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", settingsRowID).Error
	if err == nil {
		return settingsModelToDomain(&model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	model = SettingsModel{
		ID:         settingsRowID,
		MaxPending: domain.DefaultMaxPending,
		UpdatedAt:  time.Now().UTC(),
	}
	// Another caller may self-initialize concurrently; first writer wins.
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).First(&model, "id = ?", settingsRowID).Error; err != nil {
		return nil, err
	}
	return settingsModelToDomain(&model), nil
}

func (r *GormSettingsRepo) SetMaxPending(ctx context.Context, maxPending int) error {
	if _, err := r.Get(ctx); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&SettingsModel{}).
		Where("id = ?", settingsRowID).
		Updates(map[string]any{
			"max_pending": maxPending,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
