package repository

import (
	"context"
	"errors"

	"github.com/dealdocs/engine/internal/models"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentRepository interface {
	BaseRepository[models.DocumentInstance]
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.DocumentInstance, error)
	// FindByAttempt returns the instance a generation attempt already created for a template, if any.
	FindByAttempt(ctx context.Context, dealID, templateID, attemptID uuid.UUID) (*models.DocumentInstance, error)
	// UpdateStatus is a conditional write: it only applies while the instance is in one of `from`.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error
}

type documentRepository struct {
	BaseRepository[models.DocumentInstance]
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{BaseRepository: NewBaseRepository[models.DocumentInstance](db, "document"), db: db}
}

func (r *documentRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]models.DocumentInstance, error) {
	var out []models.DocumentInstance
	if err := r.db.WithContext(ctx).Where("deal_id = ?", dealID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list documents failed")
	}
	return out, nil
}

func (r *documentRepository) FindByAttempt(ctx context.Context, dealID, templateID, attemptID uuid.UUID) (*models.DocumentInstance, error) {
	var doc models.DocumentInstance
	err := r.db.WithContext(ctx).
		Where("deal_id = ? AND template_id = ? AND generation_attempt_id = ?", dealID, templateID, attemptID).
		First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "find document by attempt failed")
	}
	return &doc, nil
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []string, to string) error {
	res := r.db.WithContext(ctx).Model(&models.DocumentInstance{}).
		Where("id = ? AND status IN ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update document status failed")
	}
	if res.RowsAffected == 0 {
		return appErr.Newf(appErr.CodeFailedPrecondition, "document cannot move to %s", to)
	}
	return nil
}
