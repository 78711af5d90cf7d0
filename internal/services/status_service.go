package services

import (
	"context"
	"strings"

	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/repository"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerationStatus is the unified progress view over a deal's documents.
type GenerationStatus struct {
	Total      int    `json:"total"`
	Ready      int    `json:"ready"`
	Signed     int    `json:"signed"`
	Draft      int    `json:"draft"`
	Voided     int    `json:"voided"`
	InProgress bool   `json:"inProgress"`
	AllReady   bool   `json:"allReady"`
	AllSigned  bool   `json:"allSigned"`
	Source     string `json:"source"`
}

// Sources a status snapshot can be derived from.
const (
	StatusSourceNone      = "none"
	StatusSourceInstances = "instances"
	StatusSourceLegacy    = "legacy_pack"
)

// StatusService reports generation progress. Callers do not see whether the
// counts came from document instances or a legacy document pack.
type StatusService interface {
	GetStatus(ctx context.Context, p auth.Principal, dealID uuid.UUID) (*GenerationStatus, error)
}

type statusService struct {
	deals     repository.DealRepository
	documents repository.DocumentRepository
	packs     repository.PackRepository
}

func NewStatusService(deals repository.DealRepository, documents repository.DocumentRepository, packs repository.PackRepository) StatusService {
	return &statusService{deals: deals, documents: documents, packs: packs}
}

var _ StatusService = (*statusService)(nil)

func (s *statusService) GetStatus(ctx context.Context, p auth.Principal, dealID uuid.UUID) (*GenerationStatus, error) {
	logger.L().Debug("get generation status", zap.String("deal_id", dealID.String()))

	var deal models.Deal
	if err := s.deals.GetByID(ctx, dealID, &deal); err != nil {
		return nil, err
	}
	if !p.CanAccess(deal.DealershipID) {
		return nil, appErr.New(appErr.CodeForbidden, "deal belongs to another dealership")
	}

	docs, err := s.documents.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		statuses := make([]string, len(docs))
		for i, d := range docs {
			statuses[i] = d.Status
		}
		return Aggregate(statuses, StatusSourceInstances), nil
	}

	pack, err := s.packs.GetByDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return Aggregate(nil, StatusSourceNone), nil
	}
	entries, err := pack.Entries()
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "decode document pack failed")
	}
	statuses := make([]string, len(entries))
	for i, e := range entries {
		statuses[i] = LegacyStatus(e.Status)
	}
	return Aggregate(statuses, StatusSourceLegacy), nil
}

// LegacyStatus maps a document pack status onto the instance lifecycle.
// Unrecognised values count as DRAFT.
func LegacyStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "generated", "ready":
		return models.DocumentStatusReady
	case "signed", "completed":
		return models.DocumentStatusSigned
	case "void", "voided":
		return models.DocumentStatusVoid
	}
	return models.DocumentStatusDraft
}

// Aggregate counts instance statuses and derives the progress flags.
func Aggregate(statuses []string, source string) *GenerationStatus {
	st := &GenerationStatus{Total: len(statuses), Source: source}
	for _, s := range statuses {
		switch s {
		case models.DocumentStatusReady:
			st.Ready++
		case models.DocumentStatusSigned:
			st.Signed++
		case models.DocumentStatusDraft:
			st.Draft++
		case models.DocumentStatusVoid:
			st.Voided++
		}
	}
	st.InProgress = st.Total > 0 && st.Ready < st.Total && st.Draft > 0
	st.AllReady = st.Total > 0 && st.Ready == st.Total
	st.AllSigned = st.Total > 0 && st.Signed == st.Total
	return st
}
