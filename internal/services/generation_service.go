package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/docgen/expr"
	"github.com/dealdocs/engine/internal/docgen/mapping"
	"github.com/dealdocs/engine/internal/docgen/pdfform"
	"github.com/dealdocs/engine/internal/lock"
	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/repository"
	"github.com/dealdocs/engine/internal/storage"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/dealdocs/engine/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GenerationService runs document generation for one deal.
type GenerationService interface {
	// Generate fills every active template of the deal's dealership. attemptID
	// makes retries idempotent; uuid.Nil starts a fresh attempt.
	Generate(ctx context.Context, p auth.Principal, dealID, attemptID uuid.UUID) (*GenerationResult, error)
}

// DocumentFiller is the PDF fill step.
type DocumentFiller interface {
	Fill(ctx context.Context, templateBytes []byte, fields []mapping.ResolvedField) (*pdfform.FillResult, error)
}

type GenerationResult struct {
	Success            bool                `json:"success"`
	AttemptID          uuid.UUID           `json:"attemptId"`
	DocumentsGenerated int                 `json:"documentsGenerated"`
	Documents          []GeneratedDocument `json:"documents"`
}

type GeneratedDocument struct {
	DocumentID   uuid.UUID `json:"documentId"`
	TemplateName string    `json:"templateName"`
	Status       string    `json:"status"`
}

// GenerationSettings bounds a run.
type GenerationSettings struct {
	Concurrency     int
	TemplateTimeout time.Duration
	LeaseTTL        time.Duration
}

// GenerationDeps are the collaborators of a GenerationService.
type GenerationDeps struct {
	Deals       repository.DealRepository
	Clients     repository.ClientRepository
	Vehicles    repository.VehicleRepository
	Dealerships repository.DealershipRepository
	Templates   repository.TemplateRepository
	Documents   repository.DocumentRepository
	Blobs       storage.BlobStore
	Filler      DocumentFiller
	Locker      lock.Locker
}

type generationService struct {
	GenerationDeps
	settings GenerationSettings
	now      func() time.Time
}

func NewGenerationService(deps GenerationDeps, settings GenerationSettings) GenerationService {
	if settings.Concurrency < 1 {
		settings.Concurrency = 1
	}
	if deps.Locker == nil {
		deps.Locker = lock.NopLocker{}
	}
	return &generationService{GenerationDeps: deps, settings: settings, now: time.Now}
}

var _ GenerationService = (*generationService)(nil)

// generatableFrom are the deal statuses a run may start from.
var generatableFrom = []string{models.DealStatusDraft, models.DealStatusDocsReady}

// stale reports a deal stuck in DOCS_GENERATING for longer than the lease TTL.
func (s *generationService) stale(deal *models.Deal) bool {
	return deal.Status == models.DealStatusDocsGenerating &&
		s.settings.LeaseTTL > 0 &&
		deal.UpdatedAt.Before(s.now().Add(-s.settings.LeaseTTL))
}

func (s *generationService) Generate(ctx context.Context, p auth.Principal, dealID, attemptID uuid.UUID) (*GenerationResult, error) {
	if attemptID == uuid.Nil {
		attemptID = uuid.New()
	}
	log := logger.Deal(dealID.String()).With(
		zap.String("attempt_id", attemptID.String()),
		zap.String("requester_id", p.RequesterID.String()),
	)
	log.Info("generate deal documents")

	var deal models.Deal
	if err := s.Deals.GetByID(ctx, dealID, &deal); err != nil {
		return nil, err
	}
	if !p.CanAccess(deal.DealershipID) {
		return nil, appErr.New(appErr.CodeForbidden, "deal belongs to another dealership")
	}

	lease, err := s.Locker.Acquire(ctx, lock.DealKey(dealID), s.settings.LeaseTTL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("release generation lease failed", zap.Error(err))
		}
	}()

	prior := deal.Status
	switch {
	case slices.Contains(generatableFrom, prior):
		if err := s.Deals.TransitionStatus(ctx, dealID, []string{prior}, models.DealStatusDocsGenerating); err != nil {
			return nil, err
		}
	case s.stale(&deal):
		// A crashed run never restored the deal. Its outcome is unknown, so a
		// failure here falls back to DRAFT.
		if err := s.Deals.ReclaimStale(ctx, dealID, s.now().Add(-s.settings.LeaseTTL)); err != nil {
			return nil, err
		}
		log.Warn("reclaimed stale generation run", zap.Time("last_update", deal.UpdatedAt))
		prior = models.DealStatusDraft
	default:
		return nil, appErr.Newf(appErr.CodeConflict, "deal in status %s cannot generate documents", prior)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if err := s.Deals.TransitionStatus(context.WithoutCancel(ctx), dealID,
			[]string{models.DealStatusDocsGenerating}, prior); err != nil {
			log.Error("restore deal status failed", zap.String("status", prior), zap.Error(err))
		}
	}()

	templates, err := s.Templates.ListActiveByDealership(ctx, deal.DealershipID)
	if err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, appErr.New(appErr.CodeFailedPrecondition, "no active templates")
	}

	records, err := s.loadRecords(ctx, &deal, log)
	if err != nil {
		return nil, err
	}
	data := BuildDealData(records)

	outcomes := s.generateAll(ctx, &deal, templates, data, attemptID)

	result := &GenerationResult{AttemptID: attemptID, Documents: []GeneratedDocument{}}
	var entries []models.GenerationLogEntry
	for i, o := range outcomes {
		tpl := templates[i]
		tplFields := []zap.Field{zap.String("template_id", tpl.ID.String()), zap.String("template_name", tpl.Name)}
		switch {
		case len(o.validation) > 0:
			log.Warn("template skipped: missing required data", append(tplFields, zap.Strings("errors", o.validation))...)
			entries = append(entries, s.entry("warn", "template skipped: missing required data", map[string]any{
				"templateId": tpl.ID.String(), "templateName": tpl.Name, "errors": o.validation,
			}))
		case o.err != nil:
			log.Error("template generation failed", append(tplFields, zap.Error(o.err))...)
			entries = append(entries, s.entry("error", "template generation failed", map[string]any{
				"templateId": tpl.ID.String(), "templateName": tpl.Name, "error": o.err.Error(),
			}))
		case o.doc != nil:
			result.Documents = append(result.Documents, GeneratedDocument{
				DocumentID:   o.doc.ID,
				TemplateName: tpl.Name,
				Status:       o.doc.Status,
			})
		}
	}
	result.DocumentsGenerated = len(result.Documents)
	entries = append(entries, s.entry("info", "generation finished", map[string]any{
		"attemptId":          attemptID.String(),
		"templates":          len(templates),
		"documentsGenerated": result.DocumentsGenerated,
	}))

	if err := s.Deals.AppendGenerationLog(context.WithoutCancel(ctx), dealID, entries); err != nil {
		log.Warn("append generation log failed", zap.Error(err))
	}

	if result.DocumentsGenerated == 0 {
		log.Error("no documents generated", zap.Int("templates", len(templates)))
		return nil, appErr.New(appErr.CodeInternal, "failed to generate any documents")
	}

	if err := s.Deals.TransitionStatus(context.WithoutCancel(ctx), dealID,
		[]string{models.DealStatusDocsGenerating}, models.DealStatusDocsReady); err != nil {
		return nil, err
	}
	committed = true
	result.Success = true

	log.Info("deal documents generated",
		zap.Int("documents", result.DocumentsGenerated), zap.Int("templates", len(templates)))
	return result, nil
}

// loadRecords fetches the rows DealData is built from. A missing client,
// vehicle or dealership fails the run; a missing co-buyer is only logged.
func (s *generationService) loadRecords(ctx context.Context, deal *models.Deal, log *zap.Logger) (DealRecords, error) {
	r := DealRecords{Deal: deal}

	var client models.Client
	if err := s.Clients.GetByID(ctx, deal.ClientID, &client); err != nil {
		return r, relationError(err, "client", deal.ClientID)
	}
	r.Client = &client

	var vehicle models.Vehicle
	if err := s.Vehicles.GetByID(ctx, deal.VehicleID, &vehicle); err != nil {
		return r, relationError(err, "vehicle", deal.VehicleID)
	}
	r.Vehicle = &vehicle

	var dealership models.Dealership
	if err := s.Dealerships.GetByID(ctx, deal.DealershipID, &dealership); err != nil {
		return r, relationError(err, "dealership", deal.DealershipID)
	}
	r.Dealership = &dealership

	if deal.CoBuyerID != nil {
		var cobuyer models.Client
		if err := s.Clients.GetByID(ctx, *deal.CoBuyerID, &cobuyer); err != nil {
			log.Warn("co-buyer not loaded", zap.String("cobuyer_id", deal.CoBuyerID.String()), zap.Error(err))
		} else {
			r.CoBuyer = &cobuyer
		}
	}
	return r, nil
}

func relationError(err error, relation string, id uuid.UUID) error {
	if appErr.IsCode(err, appErr.CodeNotFound) {
		return appErr.Newf(appErr.CodeNotFound, "deal references missing %s %s", relation, id)
	}
	return err
}

type templateOutcome struct {
	doc        *models.DocumentInstance
	validation []string
	err        error
}

// generateAll runs every template and waits for all of them. Outcomes are
// indexed like templates; no template error is returned to the group.
func (s *generationService) generateAll(ctx context.Context, deal *models.Deal, templates []models.DocumentTemplate, data expr.Context, attemptID uuid.UUID) []templateOutcome {
	outcomes := make([]templateOutcome, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Concurrency)
	for i := range templates {
		i := i
		g.Go(func() error {
			outcomes[i] = s.runTemplate(gctx, deal, &templates[i], data, attemptID)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *generationService) runTemplate(ctx context.Context, deal *models.Deal, tpl *models.DocumentTemplate, data expr.Context, attemptID uuid.UUID) (out templateOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = templateOutcome{err: fmt.Errorf("panic: %v", r)}
		}
	}()

	mappings, err := tpl.Mappings()
	if err != nil {
		return templateOutcome{err: fmt.Errorf("decode field mappings: %w", err)}
	}
	res := mapping.Resolve(mappings, data)
	if len(res.ValidationErrors) > 0 {
		return templateOutcome{validation: res.ValidationErrors}
	}

	if s.settings.TemplateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.settings.TemplateTimeout)
		defer cancel()
	}
	doc, err := s.generateOne(ctx, deal, tpl, res, attemptID)
	return templateOutcome{doc: doc, err: err}
}

// generateOne produces and persists one document. An instance already created
// by the same attempt is returned as is.
func (s *generationService) generateOne(ctx context.Context, deal *models.Deal, tpl *models.DocumentTemplate, res mapping.Result, attemptID uuid.UUID) (*models.DocumentInstance, error) {
	existing, err := s.Documents.FindByAttempt(ctx, deal.ID, tpl.ID, attemptID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	src, err := s.Blobs.GetObject(ctx, tpl.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("fetch template: %w", err)
	}
	filled, err := s.Filler.Fill(ctx, src, res.Fields)
	if err != nil {
		return nil, fmt.Errorf("fill template: %w", err)
	}

	docID := uuid.New()
	key := storage.DocumentKey(deal.DealershipID, deal.ID, docID)
	if err := s.Blobs.PutObject(ctx, key, filled.Bytes, storage.PDFContentType); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	doc := &models.DocumentInstance{
		ID:                  docID,
		DealID:              deal.ID,
		TemplateID:          tpl.ID,
		GenerationAttemptID: attemptID,
		DealershipID:        deal.DealershipID,
		Status:              models.DocumentStatusReady,
		S3Key:               key,
		FileSize:            int64(len(filled.Bytes)),
		Checksum:            utils.SHA256Hex(filled.Bytes),
		DocumentType:        tpl.Category,
		Name:                tpl.Name,
		TemplateVersion:     tpl.Version,
		RequiredSignatures:  models.SignersJSON(res.RequiredSignatures),
	}
	if err := s.Documents.Create(ctx, doc); err != nil {
		if rmErr := s.Blobs.RemoveObject(context.WithoutCancel(ctx), key); rmErr != nil {
			logger.L().Warn("remove orphaned document failed", zap.String("key", key), zap.Error(rmErr))
		}
		return nil, err
	}

	logger.Deal(deal.ID.String()).Info("document generated",
		zap.String("template_id", tpl.ID.String()),
		zap.String("document_id", docID.String()),
		zap.Int("filled", filled.FilledCount),
		zap.Int("skipped", filled.SkippedCount),
	)
	return doc, nil
}

func (s *generationService) entry(level, msg string, data map[string]any) models.GenerationLogEntry {
	return models.GenerationLogEntry{Timestamp: s.now().UTC(), Level: level, Message: msg, Data: data}
}

