package margin

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/shared"
)

// CSVWriter serialises the margin report.
type CSVWriter func(w io.Writer, rows []PartnerSummary) error

// Handler serves the per-partner margin report.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	writeCSV CSVWriter
	csvPool  sync.Pool
}

// NewHandler constructs the margin HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, writeCSV CSVWriter) *Handler {
	h := &Handler{logger: logger, service: service, writeCSV: writeCSV}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// Mount registers the margin routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/resumen-socios", h.handleSummary)
	r.Get("/resumen-socios/export", h.handleExport)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	period := ledger.FilterFromQuery(r).Period
	rows, rates, err := h.service.Summarize(r.Context(), period)
	if err != nil {
		h.serverError(w, "summarize partners", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"ym":    period.String(),
		"filas": rows,
		"rates": rates,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	period := ledger.FilterFromQuery(r).Period
	rows, _, err := h.service.Summarize(r.Context(), period)
	if err != nil {
		h.serverError(w, "summarize partners", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := h.writeCSV(buf, rows); err != nil {
		h.serverError(w, "write partner csv", err)
		return
	}

	filename := fmt.Sprintf("resumen_socios_%s.csv", period.String())
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) serverError(w http.ResponseWriter, context string, err error) {
	h.logger.Error(context, slog.Any("error", err))
	shared.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
