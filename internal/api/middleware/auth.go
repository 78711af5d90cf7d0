package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dealdocs/engine/internal/api/types"
	"github.com/dealdocs/engine/internal/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type userKeyType string

const UserIDKey userKeyType = "user_id"

// Auth validates a Bearer JWT using the provided HMAC secret and stores the
// caller's principal in the request context.
func Auth(hmacSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFromHeader(r.Header.Get("Authorization"), hmacSecret)
			if !ok {
				unauthorized(w)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, p.RequesterID.String())
			ctx = auth.WithPrincipal(ctx, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFromHeader(header string, secret []byte) (auth.Principal, bool) {
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return auth.Principal{}, false
	}
	tokenStr := strings.TrimSpace(header[len("Bearer "):])
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return auth.Principal{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return auth.Principal{}, false
	}
	sub, _ := claims["sub"].(string)
	dealership, _ := claims["dealership_id"].(string)
	uid, err := uuid.Parse(sub)
	if err != nil {
		return auth.Principal{}, false
	}
	did, err := uuid.Parse(dealership)
	if err != nil {
		return auth.Principal{}, false
	}
	return auth.Principal{RequesterID: uid, DealershipID: did}, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(types.APIResponse{
		Success: false,
		Error:   &types.APIError{Code: "unauthorized", Message: "missing or invalid bearer token"},
	})
}

func GetUserID(ctx context.Context) string {
	if v := ctx.Value(UserIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
