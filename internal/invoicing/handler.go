package invoicing

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/retailpos/pos-backend/internal/platform/httpx"
)

// IdempotencyHeader carries an optional client supplied replay key.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes invoice endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	respond *httpx.Responder
}

// NewHandler constructs the invoicing handler.
func NewHandler(logger *slog.Logger, service *Service, respond *httpx.Responder) *Handler {
	return &Handler{logger: logger, service: service, respond: respond}
}

// MountRoutes registers routes under /invoices.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/payments", h.payments)
	r.Put("/{id}/void", h.void)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	inv, err := h.service.CreateInvoice(r.Context(), req, key)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.logger.Info("invoice issued",
		slog.String("number", inv.Display()),
		slog.Int64("branch_id", inv.BranchID),
		slog.String("total", inv.Total.StringFixed(2)))
	httpx.OK(w, http.StatusCreated, inv)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	var err error
	if filter.BranchID, err = httpx.QueryID(r, "branchId"); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if filter.CustomerID, err = httpx.QueryID(r, "customerId"); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if filter.StaffID, err = httpx.QueryID(r, "staffId"); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if filter.From, err = httpx.QueryDate(r, "dateFrom", false); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if filter.To, err = httpx.QueryDate(r, "dateTo", true); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if filter.Limit, err = httpx.QueryInt(r, "limit"); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	filter.Status = Status(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	invoices, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.List(w, invoices)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) payments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	view, err := h.service.Payments(r.Context(), id)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, view)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	var req VoidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	inv, err := h.service.VoidInvoice(r.Context(), id, req)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.logger.Info("invoice voided", slog.String("number", inv.Display()), slog.Int64("staff_id", req.StaffID))
	httpx.OK(w, http.StatusOK, inv)
}
