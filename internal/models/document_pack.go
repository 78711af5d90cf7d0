package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Statuses used by the legacy pack representation.
const (
	PackStatusPending   = "pending"
	PackStatusGenerated = "generated"
	PackStatusSigned    = "signed"
	PackStatusVoid      = "void"
)

// DocumentPack is the legacy, one-row-per-deal record of generated documents.
// Deals generated before document instances existed only have a pack.
type DocumentPack struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DealID       uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"deal_id"`
	DealershipID uuid.UUID      `gorm:"type:uuid;index;not null" json:"dealership_id"`
	Documents    datatypes.JSON `gorm:"type:jsonb" json:"documents"`
	MigratedAt   *time.Time     `json:"migrated_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DocumentPack) TableName() string {
	return "document_packs"
}

func (p *DocumentPack) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// PackDocument is one entry in a legacy pack.
type PackDocument struct {
	TemplateID string `json:"templateId,omitempty"`
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Status     string `json:"status"`
	S3Key      string `json:"s3Key,omitempty"`
	FileSize   int64  `json:"fileSize,omitempty"`
}

// Entries decodes the pack's documents.
func (p *DocumentPack) Entries() ([]PackDocument, error) {
	if len(p.Documents) == 0 {
		return nil, nil
	}
	var out []PackDocument
	if err := json.Unmarshal(p.Documents, &out); err != nil {
		return nil, err
	}
	return out, nil
}
