package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/oevi/oevi/internal/arca"
	"github.com/oevi/oevi/internal/cashbox"
	"github.com/oevi/oevi/internal/dashboard"
	"github.com/oevi/oevi/internal/importer"
	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/margin"
	"github.com/oevi/oevi/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	LedgerHandler    *ledger.Handler
	MarginHandler    *margin.Handler
	CashboxHandler   *cashbox.Handler
	ArcaHandler      *arca.Handler
	DashboardHandler *dashboard.Handler
	ImportHandler    *importer.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Oevi defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.DashboardHandler != nil {
		params.DashboardHandler.Mount(r)
	}
	if params.LedgerHandler != nil {
		params.LedgerHandler.Mount(r)
	}
	if params.MarginHandler != nil {
		params.MarginHandler.Mount(r)
	}
	if params.CashboxHandler != nil {
		params.CashboxHandler.Mount(r)
	}
	if params.ArcaHandler != nil {
		params.ArcaHandler.Mount(r)
	}
	if params.ImportHandler != nil {
		params.ImportHandler.Mount(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
