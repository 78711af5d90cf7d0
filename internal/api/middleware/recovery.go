package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/dealdocs/engine/internal/api/types"
	"github.com/dealdocs/engine/pkg/logger"
	"go.uber.org/zap"
)

// Recovery logs panics and returns 500 with a generic message.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.L().Error("panic recovered",
					zap.String("id", GetRequestID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(types.APIResponse{
					Error: &types.APIError{Code: "internal", Message: "internal server error"},
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
