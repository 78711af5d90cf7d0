package services

import (
	"context"
	"fmt"

	"github.com/dealdocs/engine/internal/docgen/mapping"
	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/repository"
	"github.com/dealdocs/engine/internal/storage"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImportTemplateInput is one template version to store.
type ImportTemplateInput struct {
	DealershipID uuid.UUID             `validate:"required"`
	Name         string                `validate:"required"`
	Category     string                `validate:"required"`
	SortOrder    int                   `validate:"gte=0"`
	Mappings     []models.FieldMapping `validate:"required,min=1,dive"`
	PDF          []byte                `validate:"required"`
}

// TemplateService stores new template versions. Existing versions are never
// modified beyond being deactivated, so generated documents keep their source.
// An import that fails to commit leaves no active-version change and no upload.
type TemplateService interface {
	Import(ctx context.Context, in ImportTemplateInput) (*models.DocumentTemplate, error)
}

type templateService struct {
	templates repository.TemplateRepository
	blobs     storage.BlobStore
	validate  *validator.Validate
}

func NewTemplateService(templates repository.TemplateRepository, blobs storage.BlobStore) TemplateService {
	return &templateService{templates: templates, blobs: blobs, validate: validator.New()}
}

var _ TemplateService = (*templateService)(nil)

// TemplateKey is the object key of a stored template version.
func TemplateKey(dealershipID, templateID uuid.UUID, version int) string {
	return fmt.Sprintf("%s/templates/%s/v%d.pdf", dealershipID, templateID, version)
}

func (s *templateService) Import(ctx context.Context, in ImportTemplateInput) (*models.DocumentTemplate, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "invalid template")
	}
	for _, m := range in.Mappings {
		if m.Required && mapping.IsSpecialPlaceholder(m.DataPath) {
			logger.L().Warn("required flag ignored on placeholder mapping",
				zap.String("template", in.Name), zap.String("field", m.PDFFieldName))
		}
	}

	latest, err := s.templates.LatestVersion(ctx, in.DealershipID, in.Name)
	if err != nil {
		return nil, err
	}

	tpl := &models.DocumentTemplate{
		ID:           uuid.New(),
		DealershipID: in.DealershipID,
		Name:         in.Name,
		Category:     in.Category,
		Version:      latest + 1,
		IsActive:     true,
		SortOrder:    in.SortOrder,
	}
	if err := tpl.SetMappings(in.Mappings); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "encode field mappings failed")
	}
	tpl.SourceKey = TemplateKey(in.DealershipID, tpl.ID, tpl.Version)

	if err := s.blobs.PutObject(ctx, tpl.SourceKey, in.PDF, storage.PDFContentType); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeUnavailable, "upload template failed")
	}
	if err := s.templates.ReplaceActive(ctx, tpl); err != nil {
		if rmErr := s.blobs.RemoveObject(context.WithoutCancel(ctx), tpl.SourceKey); rmErr != nil {
			logger.L().Warn("remove orphaned template upload failed",
				zap.String("key", tpl.SourceKey), zap.Error(rmErr))
		}
		return nil, err
	}

	logger.L().Info("template imported",
		zap.String("dealership_id", in.DealershipID.String()),
		zap.String("template_id", tpl.ID.String()),
		zap.String("name", tpl.Name), zap.Int("version", tpl.Version))
	return tpl, nil
}
