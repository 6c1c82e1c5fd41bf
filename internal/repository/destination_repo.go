package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"linkrelay/internal/domain"
)

type DestinationRepository interface {
	Upsert(ctx context.Context, dest *domain.Destination) error
	GetByLabel(ctx context.Context, label string) (*domain.Destination, error)
	ListAll(ctx context.Context) ([]domain.Destination, error)
}

type GormDestinationRepo struct {
	db *gorm.DB
}

func NewGormDestinationRepo(db *gorm.DB) *GormDestinationRepo {
	return &GormDestinationRepo{db: db}
}

func (r *GormDestinationRepo) Upsert(ctx context.Context, dest *domain.Destination) error {
	model := destinationModelFromDomain(dest)
	if model == nil {
		return domain.ErrValidation
	}

	now := time.Now().UTC()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "label"}},
			DoUpdates: clause.AssignmentColumns([]string{"delivery_address", "display_name", "updated_at"}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	if dest != nil {
		*dest = *destinationModelToDomain(model)
	}
	return nil
}

func (r *GormDestinationRepo) GetByLabel(ctx context.Context, label string) (*domain.Destination, error) {
	var model DestinationModel
	err := r.db.WithContext(ctx).First(&model, "label = ?", label).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return destinationModelToDomain(&model), nil
}

func (r *GormDestinationRepo) ListAll(ctx context.Context) ([]domain.Destination, error) {
	var models []DestinationModel
	err := r.db.WithContext(ctx).
		Order("label ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	destinations := make([]domain.Destination, 0, len(models))
	for i := range models {
		destinations = append(destinations, *destinationModelToDomain(&models[i]))
	}
	return destinations, nil
}
