package repository

import (
	"time"

	"linkrelay/internal/domain"
)

// LinkModel is the persistence model for the links table.
type LinkModel struct {
	ID               string           `gorm:"type:uuid;primaryKey"`
	URL              string           `gorm:"type:text;not null"`
	State            domain.LinkState `gorm:"type:varchar(10);not null"`
	DestinationLabel *string          `gorm:"type:varchar(64)"`
	BatchID          *string          `gorm:"type:varchar(36)"`
	CreatedAt        time.Time        `gorm:"not null"`
	SentAt           *time.Time
	CopiedAt         *time.Time
}

func (LinkModel) TableName() string {
	return "links"
}

// SettingsModel is the singleton queue configuration row.
type SettingsModel struct {
	ID         int `gorm:"primaryKey"`
	MaxPending int `gorm:"not null"`
	UpdatedAt  time.Time
}

func (SettingsModel) TableName() string {
	return "queue_settings"
}

// DestinationModel is the persistence model for destinations.
type DestinationModel struct {
	Label           string  `gorm:"type:varchar(64);primaryKey"`
	DeliveryAddress string  `gorm:"type:varchar(255);not null"`
	DisplayName     *string `gorm:"type:varchar(255)"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (DestinationModel) TableName() string {
	return "destinations"
}

func linkModelFromDomain(l *domain.Link) *LinkModel {
	if l == nil {
		return nil
	}

	return &LinkModel{
		ID:               l.ID,
		URL:              l.URL,
		State:            l.State,
		DestinationLabel: l.DestinationLabel,
		BatchID:          l.BatchID,
		CreatedAt:        l.CreatedAt,
		SentAt:           l.SentAt,
		CopiedAt:         l.CopiedAt,
	}
}

func linkModelToDomain(m *LinkModel) *domain.Link {
	if m == nil {
		return nil
	}

	return &domain.Link{
		ID:               m.ID,
		URL:              m.URL,
		State:            m.State,
		DestinationLabel: m.DestinationLabel,
		BatchID:          m.BatchID,
		CreatedAt:        m.CreatedAt,
		SentAt:           m.SentAt,
		CopiedAt:         m.CopiedAt,
	}
}

func linkModelsToDomain(models []LinkModel) []domain.Link {
	links := make([]domain.Link, 0, len(models))
	for i := range models {
		links = append(links, *linkModelToDomain(&models[i]))
	}
	return links
}

func settingsModelToDomain(m *SettingsModel) *domain.Settings {
	if m == nil {
		return nil
	}

	return &domain.Settings{
		MaxPending: m.MaxPending,
		UpdatedAt:  m.UpdatedAt,
	}
}

func destinationModelFromDomain(d *domain.Destination) *DestinationModel {
	if d == nil {
		return nil
	}

	return &DestinationModel{
		Label:           d.Label,
		DeliveryAddress: d.DeliveryAddress,
		DisplayName:     d.DisplayName,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

func destinationModelToDomain(m *DestinationModel) *domain.Destination {
	if m == nil {
		return nil
	}

	return &domain.Destination{
		Label:           m.Label,
		DeliveryAddress: m.DeliveryAddress,
		DisplayName:     m.DisplayName,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
