package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dealdocs/engine/internal/api/middleware"
	"github.com/dealdocs/engine/internal/api/types"
	"github.com/dealdocs/engine/internal/api/validators"
	"github.com/dealdocs/engine/internal/auth"
	"github.com/dealdocs/engine/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, types.APIResponse{
		Success: true,
		Data:    data,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// writeError maps an AppError code onto the response status. Internal
// details are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.HTTPStatus(err)
	apiErr := types.FromAppError(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			apiErr = &types.APIError{Code: apiErr.Code, Message: "internal server error"}
		}
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   apiErr,
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

func writeErrorStr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   &types.APIError{Code: code, Message: msg},
	})
}

// decodeJSON reads and validates a request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid", "invalid json")
		return false
	}
	if err := validators.New().Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, types.APIResponse{
			Error: &types.APIError{Code: "invalid", Message: "validation failed", Details: err.Error()},
		})
		return false
	}
	return true
}

func principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, ok := auth.FromContext(r.Context())
	if !ok {
		writeErrorStr(w, http.StatusUnauthorized, "unauthorized", "missing principal")
		return auth.Principal{}, false
	}
	return p, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid", name+" must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}
