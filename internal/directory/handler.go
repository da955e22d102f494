package directory

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailpos/pos-backend/internal/platform/httpx"
	"github.com/retailpos/pos-backend/internal/shared"
)

// Handler wires HTTP endpoints for directory lookups.
type Handler struct {
	service *Service
	respond *httpx.Responder
}

// NewHandler constructs the directory handler.
func NewHandler(service *Service, respond *httpx.Responder) *Handler {
	return &Handler{service: service, respond: respond}
}

// MountRoutes registers routes under /branches.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.getBranch)
	r.Patch("/{id}/status", h.setBranchStatus)
}

func (h *Handler) getBranch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	b, err := h.service.Branch(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, b)
}

func (h *Handler) setBranchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	var req struct {
		Status shared.Status `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	b, err := h.service.SetBranchStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, b)
}
