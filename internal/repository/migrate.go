package repository

import (
	"fmt"

	"github.com/dealdocs/engine/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema for every model and applies the
// hand-written migrations AutoMigrate cannot express.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, m := range customMigrations {
		if err := m(db); err != nil {
			return err
		}
	}
	return nil
}

var customMigrations = []func(*gorm.DB) error{
	enableUUIDExtension,
	addDocumentIndexes,
	addDealStatusCheck,
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// addDocumentIndexes covers the status view, which groups a deal's live instances.
func addDocumentIndexes(db *gorm.DB) error {
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_document_instances_deal_status
		ON document_instances(deal_id, status)
		WHERE deleted_at IS NULL
	`).Error
}

func addDealStatusCheck(db *gorm.DB) error {
	return db.Exec(`
		DO $$ BEGIN
			ALTER TABLE deals ADD CONSTRAINT chk_deals_status
			CHECK (status IN ('DRAFT','DOCS_GENERATING','DOCS_READY','SIGNED','FUNDED','CANCELLED'));
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$;
	`).Error
}
