package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldMapping binds one PDF form field to a data expression or a signing placeholder.
type FieldMapping struct {
	PDFFieldName string `json:"pdfFieldName" yaml:"pdfFieldName" validate:"required"`
	DataPath     string `json:"dataPath" yaml:"dataPath" validate:"required"`
	Required     bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// DocumentTemplate is a dealership's PDF form plus its ordered field mappings.
// Templates are never edited in place once documents reference them; a new
// version is stored instead.
type DocumentTemplate struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DealershipID  uuid.UUID      `gorm:"type:uuid;index:idx_templates_dealership_active;uniqueIndex:idx_templates_version;not null" json:"dealership_id" validate:"required"`
	Name          string         `gorm:"not null;uniqueIndex:idx_templates_version" json:"name" validate:"required"`
	Category      string         `gorm:"type:varchar(64);index" json:"category" validate:"required"`
	Version       int            `gorm:"not null;default:1;uniqueIndex:idx_templates_version" json:"version" validate:"gte=1"`
	FieldMappings datatypes.JSON `gorm:"type:jsonb" json:"field_mappings"`
	SourceKey     string         `gorm:"not null" json:"source_key" validate:"required"`
	IsActive      bool           `gorm:"not null;default:true;index:idx_templates_dealership_active" json:"is_active"`
	SortOrder     int            `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DocumentTemplate) TableName() string {
	return "document_templates"
}

func (t *DocumentTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Mappings decodes the stored field mappings in their declared order.
func (t *DocumentTemplate) Mappings() ([]FieldMapping, error) {
	if len(t.FieldMappings) == 0 {
		return nil, nil
	}
	var out []FieldMapping
	if err := json.Unmarshal(t.FieldMappings, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetMappings encodes mappings into the jsonb column.
func (t *DocumentTemplate) SetMappings(m []FieldMapping) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	t.FieldMappings = datatypes.JSON(b)
	return nil
}
