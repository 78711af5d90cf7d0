package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Document instance lifecycle: DRAFT -> READY -> SIGNED, or VOID from any live state.
const (
	DocumentStatusDraft  = "DRAFT"
	DocumentStatusReady  = "READY"
	DocumentStatusSigned = "SIGNED"
	DocumentStatusVoid   = "VOID"
)

// DocumentInstance is one generated PDF for one template on one deal.
// Regenerating creates a new row; rows are never rewritten with new content.
type DocumentInstance struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DealID              uuid.UUID      `gorm:"type:uuid;index;uniqueIndex:idx_document_attempt;not null" json:"deal_id" validate:"required"`
	TemplateID          uuid.UUID      `gorm:"type:uuid;index;uniqueIndex:idx_document_attempt;not null" json:"template_id" validate:"required"`
	GenerationAttemptID uuid.UUID      `gorm:"type:uuid;uniqueIndex:idx_document_attempt;not null" json:"generation_attempt_id"`
	DealershipID        uuid.UUID      `gorm:"type:uuid;index;not null" json:"dealership_id" validate:"required"`
	Status              string         `gorm:"type:varchar(16);index;not null" json:"status" validate:"required,oneof=DRAFT READY SIGNED VOID"`
	S3Key               string         `gorm:"column:s3_key;not null" json:"s3_key"`
	FileSize            int64          `json:"file_size"`
	Checksum            string         `gorm:"type:varchar(64)" json:"checksum"`
	DocumentType        string         `gorm:"type:varchar(64)" json:"document_type"`
	Name                string         `gorm:"not null" json:"name"`
	TemplateVersion     int            `json:"template_version"`
	RequiredSignatures  datatypes.JSON `gorm:"type:jsonb" json:"required_signatures"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DocumentInstance) TableName() string {
	return "document_instances"
}

func (d *DocumentInstance) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Signers returns the signer roles captured at generation time.
func (d *DocumentInstance) Signers() []string {
	if len(d.RequiredSignatures) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(d.RequiredSignatures, &out)
	return out
}

// SignersJSON encodes roles for the required_signatures column; nil encodes as [].
func SignersJSON(roles []string) datatypes.JSON {
	if roles == nil {
		roles = []string{}
	}
	b, _ := json.Marshal(roles)
	return datatypes.JSON(b)
}
