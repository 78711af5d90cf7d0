package handlers

import (
	"net/http"

	"github.com/dealdocs/engine/internal/api/types"
	"github.com/dealdocs/engine/internal/services"
	"github.com/google/uuid"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	dealershipID, _ := uuid.Parse(req.DealershipID)

	u, err := h.auth.Register(r.Context(), dealershipID, req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, r, http.StatusCreated, map[string]any{
		"id":            u.ID,
		"email":         u.Email,
		"name":          u.Name,
		"dealership_id": u.DealershipID,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeOK(w, r, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   int(services.TokenTTL.Seconds()),
		"user": map[string]any{
			"id":            u.ID,
			"email":         u.Email,
			"name":          u.Name,
			"dealership_id": u.DealershipID,
		},
	})
}
