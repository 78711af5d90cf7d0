package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/internal/services"
	appErr "github.com/dealdocs/engine/pkg/errors"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeGenerateDocuments is the asynq task type for a deal generation run.
const TypeGenerateDocuments = "deal:generate_documents"

// GeneratePayload is the task payload. AttemptID is reused on every retry so
// documents created before a failure are not duplicated.
type GeneratePayload struct {
	DealID       string `json:"deal_id"`
	RequesterID  string `json:"requester_id"`
	DealershipID string `json:"dealership_id"`
	AttemptID    string `json:"attempt_id"`
}

// Enqueuer is the part of *asynq.Client the API needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewGenerateTask builds the task for one attempt. The attempt id doubles as
// the asynq task id, so enqueueing the same attempt twice is rejected.
func NewGenerateTask(p auth.Principal, dealID, attemptID uuid.UUID, timeout time.Duration) (*asynq.Task, error) {
	b, err := json.Marshal(GeneratePayload{
		DealID:       dealID.String(),
		RequesterID:  p.RequesterID.String(),
		DealershipID: p.DealershipID.String(),
		AttemptID:    attemptID.String(),
	})
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.TaskID(attemptID.String()), asynq.MaxRetry(3)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypeGenerateDocuments, b, opts...), nil
}

// GenerateTaskHandler runs queued generation attempts.
type GenerateTaskHandler struct {
	generation services.GenerationService
}

func NewGenerateTaskHandler(generation services.GenerationService) *GenerateTaskHandler {
	return &GenerateTaskHandler{generation: generation}
}

// Register mounts the handler on mux.
func (h *GenerateTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeGenerateDocuments, h.HandleGenerate)
}

func (h *GenerateTaskHandler) HandleGenerate(ctx context.Context, t *asynq.Task) error {
	p, principal, err := decodePayload(t.Payload())
	if err != nil {
		logger.L().Error("invalid generate task payload", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	dealID := uuid.MustParse(p.DealID)
	attemptID := uuid.MustParse(p.AttemptID)

	logger.Deal(p.DealID).Info("handling generate task", zap.String("attempt_id", p.AttemptID))

	res, err := h.generation.Generate(ctx, principal, dealID, attemptID)
	if err != nil {
		if retryable(err) {
			logger.Deal(p.DealID).Error("generate task failed, will retry", zap.Error(err))
			return err
		}
		logger.Deal(p.DealID).Warn("generate task rejected", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	logger.Deal(p.DealID).Info("generate task completed", zap.Int("documents", res.DocumentsGenerated))
	return nil
}

func decodePayload(raw []byte) (GeneratePayload, auth.Principal, error) {
	var p GeneratePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, auth.Principal{}, err
	}
	ids := map[string]string{
		"deal_id":       p.DealID,
		"requester_id":  p.RequesterID,
		"dealership_id": p.DealershipID,
		"attempt_id":    p.AttemptID,
	}
	for field, v := range ids {
		if _, err := uuid.Parse(v); err != nil {
			return p, auth.Principal{}, fmt.Errorf("invalid %s: %w", field, err)
		}
	}
	return p, auth.Principal{
		RequesterID:  uuid.MustParse(p.RequesterID),
		DealershipID: uuid.MustParse(p.DealershipID),
	}, nil
}

// retryable reports whether a later attempt could succeed. Authorization,
// missing records and state conflicts will not change on retry.
func retryable(err error) bool {
	switch appErr.CodeOf(err) {
	case appErr.CodeForbidden, appErr.CodeUnauthorized, appErr.CodeNotFound,
		appErr.CodeConflict, appErr.CodeFailedPrecondition, appErr.CodeInvalid:
		return false
	}
	return true
}
