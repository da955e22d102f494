package pricing

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailpos/pos-backend/internal/platform/httpx"
	"github.com/retailpos/pos-backend/internal/shared"
)

// Handler wires HTTP endpoints for prices.
type Handler struct {
	service *Service
	respond *httpx.Responder
}

// NewHandler constructs the pricing handler.
func NewHandler(service *Service, respond *httpx.Responder) *Handler {
	return &Handler{service: service, respond: respond}
}

// MountRoutes registers routes under /prices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/resolve", h.resolve)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Patch("/{id}/deactivate", h.deactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	skuID, err := httpx.QueryID(r, "skuId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	prices, err := h.service.List(r.Context(), skuID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.List(w, prices)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	skuID, err := httpx.QueryID(r, "skuId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	branchID, err := httpx.QueryID(r, "branchId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if skuID == 0 || branchID == 0 {
		h.respond.Error(w, r, shared.Validationf("skuId and branchId required"))
		return
	}
	asOf, err := httpx.QueryDate(r, "at", false)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	res, err := h.service.Resolve(r.Context(), skuID, branchID, asOf)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, res)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, p)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	p, err := h.service.Deactivate(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, p)
}
