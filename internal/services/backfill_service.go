package services

import (
	"context"
	"time"

	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/repository"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BackfillReport summarises a backfill run.
type BackfillReport struct {
	Packs     int `json:"packs"`
	Documents int `json:"documents"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// BackfillService converts legacy document packs into document instances.
type BackfillService interface {
	Backfill(ctx context.Context, limit int) (*BackfillReport, error)
}

type backfillService struct {
	packs     repository.PackRepository
	documents repository.DocumentRepository
	now       func() time.Time
}

func NewBackfillService(packs repository.PackRepository, documents repository.DocumentRepository) BackfillService {
	return &backfillService{packs: packs, documents: documents, now: time.Now}
}

var _ BackfillService = (*backfillService)(nil)

// Backfill migrates up to limit packs. Instance ids are derived from the pack
// id and entry position, so a run interrupted midway can be repeated.
func (s *backfillService) Backfill(ctx context.Context, limit int) (*BackfillReport, error) {
	packs, err := s.packs.ListUnmigrated(ctx, limit)
	if err != nil {
		return nil, err
	}

	report := &BackfillReport{}
	for i := range packs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		pack := &packs[i]
		created, skipped, err := s.migratePack(ctx, pack)
		report.Documents += created
		report.Skipped += skipped
		if err != nil {
			report.Failed++
			logger.L().Error("backfill pack failed", zap.String("pack_id", pack.ID.String()), zap.Error(err))
			continue
		}
		report.Packs++
	}
	logger.L().Info("backfill finished",
		zap.Int("packs", report.Packs), zap.Int("documents", report.Documents),
		zap.Int("skipped", report.Skipped), zap.Int("failed", report.Failed))
	return report, nil
}

func (s *backfillService) migratePack(ctx context.Context, pack *models.DocumentPack) (created, skipped int, err error) {
	entries, err := pack.Entries()
	if err != nil {
		return 0, 0, appErr.Wrap(err, appErr.CodeInternal, "decode document pack failed")
	}

	// one synthetic attempt per pack keeps the (deal, template, attempt) key unique
	attemptID := uuid.NewSHA1(pack.ID, []byte("backfill"))
	for i, e := range entries {
		templateID, perr := uuid.Parse(e.TemplateID)
		if perr != nil {
			skipped++
			continue
		}
		doc := &models.DocumentInstance{
			ID:                  uuid.NewSHA1(pack.ID, []byte{byte(i >> 8), byte(i)}),
			DealID:              pack.DealID,
			TemplateID:          templateID,
			GenerationAttemptID: attemptID,
			DealershipID:        pack.DealershipID,
			Status:              LegacyStatus(e.Status),
			S3Key:               e.S3Key,
			FileSize:            e.FileSize,
			DocumentType:        e.Type,
			Name:                e.Name,
			RequiredSignatures:  models.SignersJSON(nil),
		}
		if err := s.documents.Create(ctx, doc); err != nil {
			if appErr.IsCode(err, appErr.CodeAlreadyExists) {
				skipped++
				continue
			}
			return created, skipped, err
		}
		created++
	}

	if err := s.packs.MarkMigrated(ctx, pack.ID, s.now().UTC()); err != nil {
		return created, skipped, err
	}
	return created, skipped, nil
}
