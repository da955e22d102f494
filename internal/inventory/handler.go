package inventory

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/retailpos/pos-backend/internal/platform/httpx"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
	respond *httpx.Responder
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service, respond *httpx.Responder) *Handler {
	return &Handler{logger: logger, service: service, respond: respond}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.getStock)
	r.Post("/adjust", h.adjust)
	r.Post("/transfer", h.transfer)
	r.Post("/receive", h.receive)
	r.Put("/minimum", h.setMinimum)
	r.Get("/branches/{branchId}", h.branchInventory)
	r.Get("/skus/{skuId}", h.skuAvailability)
	r.Get("/alerts", h.alerts)
	r.Get("/out-of-stock", h.outOfStock)
	r.Get("/movements", h.movements)
	r.Get("/movements/summary", h.movementSummary)
}

func (h *Handler) getStock(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.QueryID(r, "branchId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	skuID, err := httpx.QueryID(r, "skuId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	stock, err := h.service.GetStock(r.Context(), branchID, skuID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, stock)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	var in AdjustInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	result, err := h.service.Adjust(r.Context(), in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.logger.Info("stock adjusted",
		slog.Int64("branch_id", in.BranchID),
		slog.Int64("sku_id", in.SkuID),
		slog.Int("before", result.Change.Before),
		slog.Int("after", result.Change.After))
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) transfer(w http.ResponseWriter, r *http.Request) {
	var in TransferInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	result, err := h.service.Transfer(r.Context(), in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	h.logger.Info("stock transferred",
		slog.Int64("sku_id", in.SkuID),
		slog.Int64("from_branch_id", in.FromBranchID),
		slog.Int64("to_branch_id", in.ToBranchID),
		slog.Int("quantity", in.Quantity),
		slog.String("reference", result.Reference))
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	var in ReceiveInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	result, err := h.service.Receive(r.Context(), in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, result)
}

func (h *Handler) setMinimum(w http.ResponseWriter, r *http.Request) {
	var in MinimumInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		h.respond.Error(w, r, err)
		return
	}
	stock, err := h.service.SetMinimum(r.Context(), in)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, stock)
}

func (h *Handler) branchInventory(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.PathID(r, "branchId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	alertsOnly := r.URL.Query().Get("alerts") == "true"
	inv, err := h.service.BranchInventory(r.Context(), branchID, alertsOnly)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) skuAvailability(w http.ResponseWriter, r *http.Request) {
	skuID, err := httpx.PathID(r, "skuId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	out, err := h.service.SkuAvailability(r.Context(), skuID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, out)
}

func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.QueryID(r, "branchId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	alerts, err := h.service.Alerts(r.Context(), branchID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.List(w, alerts)
}

func (h *Handler) outOfStock(w http.ResponseWriter, r *http.Request) {
	branchID, err := httpx.QueryID(r, "branchId")
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	rows, err := h.service.OutOfStock(r.Context(), branchID)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.List(w, rows)
}

func parseMovementFilter(r *http.Request) (MovementFilter, error) {
	var f MovementFilter
	var err error
	if f.BranchID, err = httpx.QueryID(r, "branchId"); err != nil {
		return f, err
	}
	if f.SkuID, err = httpx.QueryID(r, "skuId"); err != nil {
		return f, err
	}
	f.Kind = MovementKind(r.URL.Query().Get("kind"))
	if f.From, err = httpx.QueryDate(r, "dateFrom", false); err != nil {
		return f, err
	}
	if f.To, err = httpx.QueryDate(r, "dateTo", true); err != nil {
		return f, err
	}
	if f.Limit, err = httpx.QueryInt(r, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	rows, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.List(w, rows)
}

func (h *Handler) movementSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	rows, err := h.service.MovementSummary(r.Context(), filter)
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	httpx.List(w, rows)
}
