package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a buyer or co-buyer on a deal.
type Client struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DealershipID         uuid.UUID  `gorm:"type:uuid;index;not null" json:"dealership_id" validate:"required"`
	FirstName            string     `gorm:"not null" json:"first_name" validate:"required"`
	MiddleName           string     `json:"middle_name"`
	LastName             string     `gorm:"not null" json:"last_name" validate:"required"`
	Email                string     `json:"email" validate:"omitempty,email"`
	Phone                string     `json:"phone"`
	Address              string     `json:"address"`
	City                 string     `json:"city"`
	State                string     `gorm:"type:varchar(2)" json:"state"`
	ZipCode              string     `gorm:"type:varchar(10)" json:"zip_code"`
	DateOfBirth          *time.Time `json:"date_of_birth"`
	DriversLicenseNumber string     `json:"drivers_license_number"`
	DriversLicenseState  string     `gorm:"type:varchar(2)" json:"drivers_license_state"`
	Employer             string     `json:"employer"`
	// TaxIDMasked is written by the PII vault already masked; it is never decrypted here.
	TaxIDMasked string         `json:"tax_id_masked"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
