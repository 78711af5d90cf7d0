package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a dealership staff member who can generate and manage deal documents.
type User struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DealershipID uuid.UUID      `gorm:"type:uuid;index;not null" json:"dealership_id" validate:"required"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email" validate:"required,email"`
	PasswordHash string         `gorm:"not null" json:"-"`
	Name         string         `gorm:"not null" json:"name" validate:"required"`
	Role         string         `gorm:"type:varchar(32);not null;default:'staff'" json:"role" validate:"omitempty,oneof=staff manager admin"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
