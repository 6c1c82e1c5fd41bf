package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"linkrelay/internal/repository"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_links",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.LinkModel{}); err != nil {
					return err
				}
				indexes := []string{
					// Backs the pending-set dedup invariant at the schema level.
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_links_url_pending ON links (url) WHERE sent_at IS NULL`,
					`CREATE INDEX IF NOT EXISTS idx_links_pending_created ON links (created_at) WHERE sent_at IS NULL`,
					`CREATE INDEX IF NOT EXISTS idx_links_batch_id ON links (batch_id) WHERE batch_id IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_links_sent_at ON links (sent_at) WHERE sent_at IS NOT NULL`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.LinkModel{})
			},
		},
		{
			ID: "000002_create_queue_settings",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.SettingsModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.SettingsModel{})
			},
		},
		{
			ID: "000003_create_destinations",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.DestinationModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.DestinationModel{})
			},
		},
	})

	return m.Migrate()
}
