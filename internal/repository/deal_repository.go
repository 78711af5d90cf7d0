package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dealdocs/engine/internal/models"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DealRepository interface {
	BaseRepository[models.Deal]
	// TransitionStatus moves the deal to `to` only if its current status is one of `from`.
	// A deal in any other status yields a conflict error and is left untouched.
	TransitionStatus(ctx context.Context, dealID uuid.UUID, from []string, to string) error
	// ReclaimStale takes over a deal left in DOCS_GENERATING whose last update
	// is older than staleBefore. It refreshes updated_at so only one caller wins.
	ReclaimStale(ctx context.Context, dealID uuid.UUID, staleBefore time.Time) error
	// AppendGenerationLog keeps at most MaxGenerationLogEntries, dropping the oldest.
	AppendGenerationLog(ctx context.Context, dealID uuid.UUID, entries []models.GenerationLogEntry) error
}

// MaxGenerationLogEntries bounds the jsonb audit array on a deal.
const MaxGenerationLogEntries = 200

type dealRepository struct {
	BaseRepository[models.Deal]
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) DealRepository {
	return &dealRepository{BaseRepository: NewBaseRepository[models.Deal](db, "deal"), db: db}
}

func (r *dealRepository) TransitionStatus(ctx context.Context, dealID uuid.UUID, from []string, to string) error {
	if len(from) == 0 {
		return appErr.New(appErr.CodeInvalid, "no source status given")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("id = ? AND status IN ?", dealID, from).
		Update("status", to)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update deal status failed")
	}
	if res.RowsAffected == 0 {
		return appErr.Newf(appErr.CodeConflict, "deal is not in status %s", strings.Join(from, "|")).
			WithMeta("deal_id", dealID.String())
	}
	return nil
}

func (r *dealRepository) ReclaimStale(ctx context.Context, dealID uuid.UUID, staleBefore time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Deal{}).
		Where("id = ? AND status = ? AND updated_at < ?", dealID, models.DealStatusDocsGenerating, staleBefore).
		Update("updated_at", time.Now())
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "reclaim deal failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "deal has a generation run in progress").
			WithMeta("deal_id", dealID.String())
	}
	return nil
}

func (r *dealRepository) AppendGenerationLog(ctx context.Context, dealID uuid.UUID, entries []models.GenerationLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var deal models.Deal
		if err := tx.Select("id", "generation_log").First(&deal, "id = ?", dealID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.New(appErr.CodeNotFound, "deal not found")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "load generation log failed")
		}

		var log []models.GenerationLogEntry
		if len(deal.GenerationLog) > 0 {
			if err := json.Unmarshal(deal.GenerationLog, &log); err != nil {
				return appErr.Wrap(err, appErr.CodeInternal, "decode generation log failed")
			}
		}
		log = append(log, entries...)
		if n := len(log) - MaxGenerationLogEntries; n > 0 {
			log = log[n:]
		}
		b, err := json.Marshal(log)
		if err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "encode generation log failed")
		}

		if err := tx.Model(&models.Deal{}).Where("id = ?", dealID).
			Update("generation_log", datatypes.JSON(b)).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "save generation log failed")
		}
		return nil
	})
}
