package handlers

import (
	"net/http"
	"time"

	"github.com/dealdocs/engine/internal/api/types"
	"github.com/dealdocs/engine/internal/models"
	"github.com/dealdocs/engine/internal/services"
)

type DocumentsHandler struct {
	documents     services.DocumentService
	presignExpiry time.Duration
}

func NewDocumentsHandler(documents services.DocumentService, presignExpiry time.Duration) *DocumentsHandler {
	return &DocumentsHandler{documents: documents, presignExpiry: presignExpiry}
}

func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	url, err := h.documents.DownloadURL(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, types.DownloadResponse{URL: url, ExpiresIn: int(h.presignExpiry.Seconds())})
}

func (h *DocumentsHandler) Sign(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.DocumentStatusSigned)
}

func (h *DocumentsHandler) Void(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.DocumentStatusVoid)
}

func (h *DocumentsHandler) transition(w http.ResponseWriter, r *http.Request, to string) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	doc, err := h.documents.Transition(r.Context(), p, id, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, r, http.StatusOK, doc)
}
