package services

import (
	"context"

	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/repository"
	"github.com/dealdocs/engine/internal/storage"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentService exposes generated documents and moves them through their lifecycle.
type DocumentService interface {
	ListByDeal(ctx context.Context, p auth.Principal, dealID uuid.UUID) ([]models.DocumentInstance, error)
	DownloadURL(ctx context.Context, p auth.Principal, documentID uuid.UUID) (string, error)
	Transition(ctx context.Context, p auth.Principal, documentID uuid.UUID, to string) (*models.DocumentInstance, error)
}

// documentTransitions lists, per target status, the statuses it may be entered from.
var documentTransitions = map[string][]string{
	models.DocumentStatusReady:  {models.DocumentStatusDraft},
	models.DocumentStatusSigned: {models.DocumentStatusReady},
	models.DocumentStatusVoid:   {models.DocumentStatusDraft, models.DocumentStatusReady, models.DocumentStatusSigned},
}

type documentService struct {
	deals     repository.DealRepository
	documents repository.DocumentRepository
	blobs     storage.BlobStore
}

func NewDocumentService(deals repository.DealRepository, documents repository.DocumentRepository, blobs storage.BlobStore) DocumentService {
	return &documentService{deals: deals, documents: documents, blobs: blobs}
}

var _ DocumentService = (*documentService)(nil)

func (s *documentService) ListByDeal(ctx context.Context, p auth.Principal, dealID uuid.UUID) ([]models.DocumentInstance, error) {
	var deal models.Deal
	if err := s.deals.GetByID(ctx, dealID, &deal); err != nil {
		return nil, err
	}
	if !p.CanAccess(deal.DealershipID) {
		return nil, appErr.New(appErr.CodeForbidden, "deal belongs to another dealership")
	}
	return s.documents.ListByDeal(ctx, dealID)
}

func (s *documentService) load(ctx context.Context, p auth.Principal, documentID uuid.UUID) (*models.DocumentInstance, error) {
	var doc models.DocumentInstance
	if err := s.documents.GetByID(ctx, documentID, &doc); err != nil {
		return nil, err
	}
	if !p.CanAccess(doc.DealershipID) {
		return nil, appErr.New(appErr.CodeForbidden, "document belongs to another dealership")
	}
	return &doc, nil
}

func (s *documentService) DownloadURL(ctx context.Context, p auth.Principal, documentID uuid.UUID) (string, error) {
	doc, err := s.load(ctx, p, documentID)
	if err != nil {
		return "", err
	}
	if doc.Status == models.DocumentStatusVoid {
		return "", appErr.New(appErr.CodeFailedPrecondition, "document is void")
	}
	url, err := s.blobs.PresignedURL(ctx, doc.S3Key)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeUnavailable, "presign download failed")
	}
	return url, nil
}

func (s *documentService) Transition(ctx context.Context, p auth.Principal, documentID uuid.UUID, to string) (*models.DocumentInstance, error) {
	from, ok := documentTransitions[to]
	if !ok {
		return nil, appErr.Newf(appErr.CodeInvalid, "unknown document status %s", to)
	}
	doc, err := s.load(ctx, p, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.documents.UpdateStatus(ctx, documentID, from, to); err != nil {
		if appErr.IsCode(err, appErr.CodeFailedPrecondition) {
			return nil, appErr.Newf(appErr.CodeFailedPrecondition, "document in status %s cannot move to %s", doc.Status, to)
		}
		return nil, err
	}

	logger.L().Info("document status changed",
		zap.String("document_id", documentID.String()),
		zap.String("from", doc.Status), zap.String("to", to),
		zap.String("requester_id", p.RequesterID.String()))
	doc.Status = to
	return doc, nil
}
