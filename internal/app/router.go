package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/retailpos/pos-backend/internal/catalog"
	"github.com/retailpos/pos-backend/internal/directory"
	"github.com/retailpos/pos-backend/internal/inventory"
	"github.com/retailpos/pos-backend/internal/invoicing"
	"github.com/retailpos/pos-backend/internal/observability"
	"github.com/retailpos/pos-backend/internal/platform/httpx"
	"github.com/retailpos/pos-backend/internal/pricing"
	"github.com/retailpos/pos-backend/jobs"
)

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(r *http.Request) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InvoiceHandler   *invoicing.Handler
	InventoryHandler *inventory.Handler
	PricingHandler   *pricing.Handler
	CatalogHandler   *catalog.Handler
	DirectoryHandler *directory.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
	// Checks run on /healthz; a failing check turns the response into 503.
	Checks map[string]HealthCheck
}

// NewRouter constructs the chi.Router with the POS API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", healthz(params.Logger, params.Checks))

	if params.InvoiceHandler != nil {
		r.Route("/invoices", params.InvoiceHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.PricingHandler != nil {
		r.Route("/prices", params.PricingHandler.MountRoutes)
	}
	if params.CatalogHandler != nil {
		r.Route("/skus", params.CatalogHandler.MountRoutes)
	}
	if params.DirectoryHandler != nil {
		r.Route("/branches", params.DirectoryHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func healthz(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, check := range checks {
			if err := check(r); err != nil {
				logger.Warn("health check failed", slog.String("check", name), slog.Any("error", err))
				status[name] = "down"
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httpx.JSON(w, code, httpx.Envelope{Success: healthy, Data: status})
	}
}
