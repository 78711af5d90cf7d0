package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Vehicle is a unit of inventory sold on a deal.
type Vehicle struct {
	ID           uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	DealershipID uuid.UUID           `gorm:"type:uuid;index;not null" json:"dealership_id" validate:"required"`
	VIN          string              `gorm:"type:varchar(17);index" json:"vin" validate:"required,len=17"`
	StockNumber  string              `json:"stock_number"`
	Year         *int                `json:"year" validate:"omitempty,gte=1900"`
	Make         string              `json:"make" validate:"required"`
	Model        string              `json:"model" validate:"required"`
	Trim         string              `json:"trim"`
	BodyStyle    string              `json:"body_style"`
	Color        string              `json:"color"`
	Mileage      *int                `json:"mileage" validate:"omitempty,gte=0"`
	Condition    string              `gorm:"type:varchar(16)" json:"condition" validate:"omitempty,oneof=new used cpo"`
	Price        decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	DeletedAt    gorm.DeletedAt      `gorm:"index" json:"-"`
}

func (v *Vehicle) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
