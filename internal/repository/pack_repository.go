package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dealdocs/engine/internal/models"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PackRepository reads the legacy per-deal document packs.
type PackRepository interface {
	GetByDeal(ctx context.Context, dealID uuid.UUID) (*models.DocumentPack, error)
	ListUnmigrated(ctx context.Context, limit int) ([]models.DocumentPack, error)
	MarkMigrated(ctx context.Context, packID uuid.UUID, at time.Time) error
}

type packRepository struct {
	db *gorm.DB
}

func NewPackRepository(db *gorm.DB) PackRepository {
	return &packRepository{db: db}
}

// GetByDeal returns nil, nil when the deal has no legacy pack.
func (r *packRepository) GetByDeal(ctx context.Context, dealID uuid.UUID) (*models.DocumentPack, error) {
	var p models.DocumentPack
	if err := r.db.WithContext(ctx).Where("deal_id = ?", dealID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get document pack failed")
	}
	return &p, nil
}

func (r *packRepository) ListUnmigrated(ctx context.Context, limit int) ([]models.DocumentPack, error) {
	var out []models.DocumentPack
	q := r.db.WithContext(ctx).Where("migrated_at IS NULL").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list unmigrated packs failed")
	}
	return out, nil
}

func (r *packRepository) MarkMigrated(ctx context.Context, packID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.DocumentPack{}).
		Where("id = ? AND migrated_at IS NULL", packID).
		Update("migrated_at", at)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "mark pack migrated failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "pack already migrated")
	}
	return nil
}
