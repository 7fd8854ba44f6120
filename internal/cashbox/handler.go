package cashbox

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/shared"
)

// CSVWriter serialises a cash-box report.
type CSVWriter func(w io.Writer, boxes []string, movements map[string][]Movement, balances map[string]float64) error

// Handler serves the cash-box movement report.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	writeCSV CSVWriter
	csvPool  sync.Pool
}

// NewHandler constructs the cash-box HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, writeCSV CSVWriter) *Handler {
	h := &Handler{logger: logger, service: service, writeCSV: writeCSV}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// Mount registers the cash-box routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/resumen-caja", h.handleSummary)
	r.Get("/resumen-caja/export", h.handleExport)
}

func filterFromRequest(r *http.Request) Filter {
	base := ledger.FilterFromQuery(r)
	return Filter{
		Period:           base.Period,
		Box:              base.Box,
		TransactionGroup: strings.TrimSpace(r.URL.Query().Get("transaccion_id")),
	}
}

func sortedBoxes(movements map[string][]Movement) []string {
	boxes := make([]string, 0, len(movements))
	for box := range movements {
		boxes = append(boxes, box)
	}
	sort.Strings(boxes)
	return boxes
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	f := filterFromRequest(r)
	movements, balances, err := h.service.Summarize(r.Context(), f)
	if err != nil {
		h.serverError(w, "summarize cashbox", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"ym":          f.Period.String(),
		"cajas":       sortedBoxes(movements),
		"movimientos": movements,
		"saldos":      balances,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	f := filterFromRequest(r)
	movements, balances, err := h.service.Summarize(r.Context(), f)
	if err != nil {
		h.serverError(w, "summarize cashbox", err)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := h.writeCSV(buf, sortedBoxes(movements), movements, balances); err != nil {
		h.serverError(w, "write cashbox csv", err)
		return
	}

	filename := fmt.Sprintf("resumen_caja_%s.csv", f.Period.String())
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
