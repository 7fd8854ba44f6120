package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/oevi/oevi/internal/shared"
)

// RecordStore is the persistence contract the handler depends on.
type RecordStore interface {
	ListPartners(ctx context.Context) ([]Partner, error)
	EnsurePartner(ctx context.Context, name, category string) (*Partner, error)
	UpdatePartner(ctx context.Context, p Partner) error
	PurchasesByPeriod(ctx context.Context, f RecordFilter) ([]Purchase, error)
	SalesByPeriod(ctx context.Context, f RecordFilter) ([]Sale, error)
	PersonalPurchasesByPeriod(ctx context.Context, f RecordFilter) ([]PersonalPurchase, error)
}

// Handler serves the raw record listings and partner administration.
type Handler struct {
	logger *slog.Logger
	store  RecordStore
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(logger *slog.Logger, store RecordStore) *Handler {
	return &Handler{logger: logger, store: store}
}

// Mount registers the ledger routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/compras", h.handleListPurchases)
	r.Get("/ventas", h.handleListSales)
	r.Get("/compras-personales", h.handleListPersonal)
	r.Get("/socios", h.handleListPartners)
	r.Post("/socios", h.handleCreatePartner)
	r.Put("/socios/{id}", h.handleUpdatePartner)
}

// FilterFromQuery builds a record filter from the request query string.
// Absent period parameters default to all history, malformed ones to the
// empty selection.
func FilterFromQuery(r *http.Request) RecordFilter {
	q := r.URL.Query()
	f := RecordFilter{Period: shared.Period{Kind: shared.PeriodAll}}

	if q.Has("year") || q.Has("month") {
		year, _ := strconv.Atoi(q.Get("year"))
		month, _ := strconv.Atoi(q.Get("month"))
		f.Period = shared.PeriodFromYearMonth(year, month)
	} else if raw := strings.TrimSpace(q.Get("period")); raw != "" {
		p, err := shared.ParsePeriod(raw)
		if err != nil {
			p = shared.Period{Kind: shared.PeriodNone}
		}
		f.Period = p
	}

	if id, err := strconv.ParseInt(q.Get("socio_id"), 10, 64); err == nil && id > 0 {
		f.PartnerID = id
	}
	f.Status = strings.TrimSpace(q.Get("estado"))
	f.Box = strings.TrimSpace(q.Get("caja"))
	return f
}

func (h *Handler) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.store.PurchasesByPeriod(r.Context(), FilterFromQuery(r))
	if err != nil {
		h.serverError(w, "list purchases", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"compras": purchases})
}

func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.store.SalesByPeriod(r.Context(), FilterFromQuery(r))
	if err != nil {
		h.serverError(w, "list sales", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"ventas": sales})
}

func (h *Handler) handleListPersonal(w http.ResponseWriter, r *http.Request) {
	rowsOut, err := h.store.PersonalPurchasesByPeriod(r.Context(), FilterFromQuery(r))
	if err != nil {
		h.serverError(w, "list personal purchases", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"compras_personales": rowsOut})
}

func (h *Handler) handleListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.store.ListPartners(r.Context())
	if err != nil {
		h.serverError(w, "list partners", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{"socios": partners})
}

type partnerRequest struct {
	Name      string   `json:"nombre" validate:"required"`
	Category  string   `json:"tipo" validate:"required,oneof=Socio Empresa"`
	MarginPct *float64 `json:"margen_pct" validate:"omitempty,gte=0,lte=1"`
}

func (h *Handler) handleCreatePartner(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePartner(w, r)
	if !ok {
		return
	}
	partner, err := h.store.EnsurePartner(r.Context(), req.Name, req.Category)
	if err != nil {
		h.serverError(w, "create partner", err)
		return
	}
	if req.MarginPct != nil {
		partner.MarginPct = req.MarginPct
		if err := h.store.UpdatePartner(r.Context(), *partner); err != nil {
			h.serverError(w, "set partner margin", err)
			return
		}
	}
	shared.RespondJSON(w, http.StatusCreated, partner)
}

func (h *Handler) handleUpdatePartner(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		shared.RespondError(w, http.StatusBadRequest, "invalid partner id")
		return
	}
	req, ok := decodePartner(w, r)
	if !ok {
		return
	}
	partner := Partner{ID: id, Name: req.Name, Category: req.Category, MarginPct: req.MarginPct}
	if err := h.store.UpdatePartner(r.Context(), partner); err != nil {
		if err == shared.ErrNotFound {
			shared.RespondError(w, http.StatusNotFound, "partner not found")
			return
		}
		h.serverError(w, "update partner", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, partner)
}

func decodePartner(w http.ResponseWriter, r *http.Request) (partnerRequest, bool) {
	var req partnerRequest
	if err := shared.DecodeValidated(r, &req); err != nil {
		shared.RespondError(w, http.StatusBadRequest, err.Error())
		return partnerRequest{}, false
	}
	return req, true
}

func (h *Handler) serverError(w http.ResponseWriter, context string, err error) {
	h.logger.Error(context, slog.Any("error", err))
	shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
