package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dealership is the tenant that owns deals, templates and generated documents.
type Dealership struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string         `gorm:"not null" json:"name" validate:"required"`
	LegalName     string         `json:"legal_name"`
	Address       string         `json:"address"`
	City          string         `json:"city"`
	State         string         `gorm:"type:varchar(2)" json:"state"`
	ZipCode       string         `gorm:"type:varchar(10)" json:"zip_code"`
	Phone         string         `json:"phone"`
	Email         string         `json:"email"`
	LicenseNumber string         `json:"license_number"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Dealership) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
