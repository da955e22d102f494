package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailpos/pos-backend/internal/platform/httpx"
	"github.com/retailpos/pos-backend/internal/shared"
)

// Handler wires HTTP endpoints for SKU lookups.
type Handler struct {
	service *Service
	respond *httpx.Responder
}

// NewHandler constructs the catalog handler.
func NewHandler(service *Service, respond *httpx.Responder) *Handler {
	return &Handler{service: service, respond: respond}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.get)
	r.Patch("/{id}/status", h.setStatus)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	sku, err := h.service.Sku(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, sku)
}

type statusRequest struct {
	Status shared.Status `json:"status"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	sku, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, sku)
}
