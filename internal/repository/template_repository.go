package repository

import (
	"context"
	"errors"

	"github.com/dealdocs/engine/internal/models"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TemplateRepository interface {
	BaseRepository[models.DocumentTemplate]
	ListActiveByDealership(ctx context.Context, dealershipID uuid.UUID) ([]models.DocumentTemplate, error)
	// ReplaceActive deactivates every active version of tpl.Name and inserts tpl
	// in one transaction. A version that already exists is already_exists.
	ReplaceActive(ctx context.Context, tpl *models.DocumentTemplate) error
	LatestVersion(ctx context.Context, dealershipID uuid.UUID, name string) (int, error)
}

type templateRepository struct {
	BaseRepository[models.DocumentTemplate]
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{BaseRepository: NewBaseRepository[models.DocumentTemplate](db, "template"), db: db}
}

func (r *templateRepository) ListActiveByDealership(ctx context.Context, dealershipID uuid.UUID) ([]models.DocumentTemplate, error) {
	var out []models.DocumentTemplate
	err := r.db.WithContext(ctx).
		Where("dealership_id = ? AND is_active = ?", dealershipID, true).
		Order("sort_order ASC, name ASC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list active templates failed")
	}
	return out, nil
}

func (r *templateRepository) ReplaceActive(ctx context.Context, tpl *models.DocumentTemplate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.DocumentTemplate{}).
			Where("dealership_id = ? AND name = ? AND is_active = ?", tpl.DealershipID, tpl.Name, true).
			Update("is_active", false).Error
		if err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "deactivate template failed")
		}
		if err := tx.Create(tpl).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return appErr.Wrap(err, appErr.CodeAlreadyExists, "template version already exists")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "create template failed")
		}
		return nil
	})
}

func (r *templateRepository) LatestVersion(ctx context.Context, dealershipID uuid.UUID, name string) (int, error) {
	var v int
	err := r.db.WithContext(ctx).Model(&models.DocumentTemplate{}).
		Where("dealership_id = ? AND name = ?", dealershipID, name).
		Select("COALESCE(MAX(version), 0)").
		Scan(&v).Error
	if err != nil {
		return 0, appErr.Wrap(err, appErr.CodeInternal, "get template version failed")
	}
	return v, nil
}
