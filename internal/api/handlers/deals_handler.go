package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dealdocs/engine/internal/api/types"
	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/queue/tasks"
	"github.com/dealdocs/engine/internal/services"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// IdempotencyHeader carries a caller-chosen generation attempt id.
const IdempotencyHeader = "Idempotency-Key"

// DealsHandler serves the per-deal document endpoints.
type DealsHandler struct {
	generation  services.GenerationService
	status      services.StatusService
	documents   services.DocumentService
	queue       tasks.Enqueuer
	taskTimeout time.Duration
}

// NewDealsHandler wires the handler. A nil queue disables ?async=true.
func NewDealsHandler(generation services.GenerationService, status services.StatusService, documents services.DocumentService, queue tasks.Enqueuer, taskTimeout time.Duration) *DealsHandler {
	return &DealsHandler{
		generation:  generation,
		status:      status,
		documents:   documents,
		queue:       queue,
		taskTimeout: taskTimeout,
	}
}

func (h *DealsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealID")
	if !ok {
		return
	}

	attemptID := uuid.New()
	if key := r.Header.Get(IdempotencyHeader); key != "" {
		parsed, err := uuid.Parse(key)
		if err != nil {
			writeErrorStr(w, http.StatusBadRequest, "invalid", IdempotencyHeader+" must be a uuid")
			return
		}
		attemptID = parsed
	}

	if r.URL.Query().Get("async") == "true" {
		h.enqueue(w, r, p, dealID, attemptID)
		return
	}

	res, err := h.generation.Generate(r.Context(), p, dealID, attemptID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, res)
}

func (h *DealsHandler) enqueue(w http.ResponseWriter, r *http.Request, p auth.Principal, dealID, attemptID uuid.UUID) {
	if h.queue == nil {
		writeErrorStr(w, http.StatusServiceUnavailable, "unavailable", "async generation is not configured")
		return
	}
	task, err := tasks.NewGenerateTask(p, dealID, attemptID, h.taskTimeout)
	if err != nil {
		writeError(w, r, err)
		return
	}

	accepted := types.GenerationAccepted{
		DealID:    dealID.String(),
		AttemptID: attemptID.String(),
		TaskID:    attemptID.String(),
	}
	info, err := h.queue.EnqueueContext(r.Context(), task)
	switch {
	case errors.Is(err, asynq.ErrTaskIDConflict):
		// Same Idempotency-Key replayed while the first task is still known.
		logger.Deal(dealID.String()).Info("generation already queued", zap.String("attempt_id", attemptID.String()))
	case err != nil:
		logger.Deal(dealID.String()).Error("enqueue generation failed", zap.Error(err))
		writeErrorStr(w, http.StatusServiceUnavailable, "unavailable", "could not enqueue generation")
		return
	default:
		accepted.TaskID = info.ID
	}
	writeOK(w, r, http.StatusAccepted, accepted)
}

func (h *DealsHandler) Status(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealID")
	if !ok {
		return
	}
	st, err := h.status.GetStatus(r.Context(), p, dealID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, st)
}

func (h *DealsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	dealID, ok := uuidParam(w, r, "dealID")
	if !ok {
		return
	}
	docs, err := h.documents.ListByDeal(r.Context(), p, dealID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    docs,
		Meta:    &types.Meta{Total: int64(len(docs))},
	})
}
