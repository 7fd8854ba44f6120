package arca

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

	"github.com/oevi/oevi/internal/shared"
)

// OperationsCSVWriter serialises flattened operation rows.
type OperationsCSVWriter func(w io.Writer, rows []OperationRow) error

// TotalsCSVWriter serialises the grouped totals plus reconciliation lines.
type TotalsCSVWriter func(w io.Writer, totals []PeriodTypeTotal, positions []VATPosition) error

// Handler serves the fiscal consolidation reports.
type Handler struct {
	logger          *slog.Logger
	service         *Service
	writeOperations OperationsCSVWriter
	writeTotals     TotalsCSVWriter
	csvPool         sync.Pool
}

// NewHandler constructs the fiscal report HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, ops OperationsCSVWriter, totals TotalsCSVWriter) *Handler {
	h := &Handler{logger: logger, service: service, writeOperations: ops, writeTotals: totals}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// Mount registers the fiscal report routes.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/resumen-arca", h.handleOperations)
	r.Get("/resumen-arca/export", h.handleOperationsExport)
	r.Get("/totales-arca", h.handleTotals)
	r.Get("/totales-arca/export", h.handleTotalsExport)
}

func rowFilterFromQuery(r *http.Request) RowFilter {
	q := r.URL.Query()
	return RowFilter{
		YM:                strings.TrimSpace(q.Get("ym")),
		InvoiceType:       strings.TrimSpace(q.Get("tipo")),
		IncludeOtherTypes: q.Get("incluirN") == "1",
	}
}

func (h *Handler) filteredRows(r *http.Request) ([]OperationRow, []string, error) {
	rows, err := h.service.Flatten(r.Context())
	if err != nil {
		return nil, nil, err
	}

	periods := make(map[string]struct{})
	for _, row := range rows {
		if len(row.Date) >= 7 {
			periods[row.Date[:7]] = struct{}{}
		}
	}
	periodList := make([]string, 0, len(periods))
	for ym := range periods {
		periodList = append(periodList, ym)
	}
	sort.Strings(periodList)

	return Filter(rows, rowFilterFromQuery(r)), periodList, nil
}

func (h *Handler) handleOperations(w http.ResponseWriter, r *http.Request) {
	rows, periods, err := h.filteredRows(r)
	if err != nil {
		h.serverError(w, "flatten operations", err)
		return
	}
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"filas":   rows,
		"ym_list": periods,
	})
}

func (h *Handler) handleOperationsExport(w http.ResponseWriter, r *http.Request) {
	rows, _, err := h.filteredRows(r)
	if err != nil {
		h.serverError(w, "flatten operations", err)
		return
	}
	h.streamCSV(w, "resumen_arca.csv", func(buf *bytes.Buffer) error {
		return h.writeOperations(buf, rows)
	})
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	rows, _, err := h.filteredRows(r)
	if err != nil {
		h.serverError(w, "flatten operations", err)
		return
	}
	totals := Totals(rows)
	shared.RespondJSON(w, http.StatusOK, map[string]any{
		"filas":  totals,
		"totals": VATPositions(totals),
	})
}

func (h *Handler) handleTotalsExport(w http.ResponseWriter, r *http.Request) {
	rows, _, err := h.filteredRows(r)
	if err != nil {
		h.serverError(w, "flatten operations", err)
		return
	}
	totals := Totals(rows)
	h.streamCSV(w, "totales_arca.csv", func(buf *bytes.Buffer) error {
		return h.writeTotals(buf, totals, VATPositions(totals))
	})
}

func (h *Handler) streamCSV(w http.ResponseWriter, filename string, write func(*bytes.Buffer) error) {
	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := write(buf); err != nil {
		h.serverError(w, "write csv", err)
		return
	}
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
