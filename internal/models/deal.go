package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Deal lifecycle values. The document pipeline only moves a deal between
// DRAFT, DOCS_GENERATING and DOCS_READY.
const (
	DealStatusDraft          = "DRAFT"
	DealStatusDocsGenerating = "DOCS_GENERATING"
	DealStatusDocsReady      = "DOCS_READY"
	DealStatusSigned         = "SIGNED"
	DealStatusFunded         = "FUNDED"
	DealStatusCancelled      = "CANCELLED"
)

// Deal is a transaction between a client and a vehicle at a dealership.
type Deal struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DealershipID uuid.UUID  `gorm:"type:uuid;index;not null" json:"dealership_id" validate:"required"`
	ClientID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"client_id" validate:"required"`
	CoBuyerID    *uuid.UUID `gorm:"type:uuid" json:"cobuyer_id,omitempty"`
	VehicleID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"vehicle_id" validate:"required"`
	Status       string     `gorm:"type:varchar(32);index;not null;default:'DRAFT'" json:"status" validate:"required,oneof=DRAFT DOCS_GENERATING DOCS_READY SIGNED FUNDED CANCELLED"`
	DealType     string     `gorm:"type:varchar(16)" json:"deal_type" validate:"omitempty,oneof=cash finance lease"`

	// Monetary and financing terms are nullable: an unset value is absent,
	// not zero, so documents that require it are skipped instead of printing 0.
	SaleDate         *time.Time          `json:"sale_date"`
	SalePrice        decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"sale_price"`
	DownPayment      decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"down_payment"`
	TradeInValue     decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"trade_in_value"`
	TradeInPayoff    decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"trade_in_payoff"`
	SalesTax         decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"sales_tax"`
	DocFee           decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"doc_fee"`
	AmountFinanced   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"amount_financed"`
	APR              decimal.NullDecimal `gorm:"type:numeric(6,3)" json:"apr"`
	TermMonths       *int                `json:"term_months" validate:"omitempty,gte=1"`
	MonthlyPayment   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"monthly_payment"`
	FirstPaymentDate *time.Time          `json:"first_payment_date"`
	SalespersonName  string              `json:"salesperson_name"`

	// Insurance and LienHolder are optional flat groups captured on the deal form.
	Insurance  datatypes.JSON `gorm:"type:jsonb" json:"insurance,omitempty"`
	LienHolder datatypes.JSON `gorm:"type:jsonb" json:"lien_holder,omitempty"`

	GenerationLog datatypes.JSON `gorm:"type:jsonb" json:"generation_log,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Deal) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = DealStatusDraft
	}
	return nil
}

// GenerationLogEntry is one audit record written by a document generation run.
type GenerationLogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// Group decodes an optional jsonb group (insurance, lien holder). Empty or
// malformed columns yield nil.
func Group(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
