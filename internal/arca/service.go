package arca

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/shared"
)

// Operation types.
const (
	OpPurchase = "COMPRA"
	OpSale     = "VENTA"
)

// allowedInvoiceTypes is the default fiscal allow-list.
var allowedInvoiceTypes = map[string]bool{"A": true, "B": true}

// OperationRow is one flattened purchase or sale for the fiscal report.
type OperationRow struct {
	Operation     string  `json:"tipo_operacion"`
	Date          string  `json:"fecha"`
	InvoiceType   string  `json:"tipo_comprobante"`
	InvoiceNumber string  `json:"nro_factura"`
	PointOfSale   string  `json:"punto_venta"`
	Sequence      string  `json:"nro_comprobante"`
	Formatted     string  `json:"nro_factura_fmt"`
	TaxID         string  `json:"cuit"`
	Counterparty  string  `json:"denominacion"`
	NetAmount     float64 `json:"pesos_sin_iva"`
	VAT21         float64 `json:"iva_21"`
	VAT105        float64 `json:"iva_105"`
	TotalWithVAT  float64 `json:"total_con_iva"`
	Status        string  `json:"estado"`
	BoxLabel      string  `json:"origen_destino"`
	PartnerName   string  `json:"nombre_socio"`
}

// PeriodTypeTotal aggregates one (period, operation type) group.
type PeriodTypeTotal struct {
	YM                  string  `json:"ym"`
	Operation           string  `json:"tipo_operacion"`
	NetAmount           float64 `json:"pesos_sin_iva"`
	VAT21               float64 `json:"iva_21"`
	VAT105              float64 `json:"iva_105"`
	TotalWithVAT        float64 `json:"total_con_iva"`
	TechnicalVATBalance float64 `json:"saldo_tecnico_iva"`
}

// VATPosition is the per-period reconciliation figure derived from totals.
type VATPosition struct {
	YM        string  `json:"ym"`
	Sales     float64 `json:"ventas"`
	Purchases float64 `json:"compras"`
	Result    float64 `json:"resultado"`
}

// RowFilter narrows the flattened operation list.
type RowFilter struct {
	// YM restricts rows to those whose date starts with this period prefix.
	YM string
	// InvoiceType narrows to one type regardless of the allow-list.
	InvoiceType string
	// IncludeOtherTypes admits invoice types outside the A/B allow-list.
	IncludeOtherTypes bool
}

// RecordSource is the slice of the ledger the fiscal report reads.
type RecordSource interface {
	ListPartners(ctx context.Context) ([]ledger.Partner, error)
	PurchasesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Purchase, error)
	SalesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Sale, error)
}

// Service consolidates purchases and sales into the fiscal operation report.
type Service struct {
	logger *slog.Logger
	store  RecordSource
}

// NewService constructs the consolidation service.
func NewService(logger *slog.Logger, store RecordSource) *Service {
	return &Service{logger: logger, store: store}
}

// Flatten returns one row per purchase and sale over all history, with
// invoice numbers split and partner names resolved.
func (s *Service) Flatten(ctx context.Context) ([]OperationRow, error) {
	partners, err := s.store.ListPartners(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(partners))
	for _, p := range partners {
		names[p.ID] = p.Name
	}

	all := ledger.RecordFilter{Period: shared.Period{Kind: shared.PeriodAll}}
	purchases, err := s.store.PurchasesByPeriod(ctx, all)
	if err != nil {
		return nil, err
	}
	sales, err := s.store.SalesByPeriod(ctx, all)
	if err != nil {
		return nil, err
	}

	rows := make([]OperationRow, 0, len(purchases)+len(sales))
	for _, p := range purchases {
		split := SplitInvoiceNumber(p.InvoiceNum)
		rows = append(rows, OperationRow{
			Operation:     OpPurchase,
			Date:          p.Date.Format("2006-01-02"),
			InvoiceType:   normalizeType(p.InvoiceType),
			InvoiceNumber: p.InvoiceNum,
			PointOfSale:   split.PointOfSale,
			Sequence:      split.Sequence,
			Formatted:     split.Formatted,
			TaxID:         p.TaxID,
			Counterparty:  p.Supplier,
			NetAmount:     shared.Round2(p.NetAmount),
			VAT21:         shared.Round2(p.VAT21),
			VAT105:        shared.Round2(p.VAT105),
			TotalWithVAT:  shared.Round2(p.Total()),
			Status:        p.Status,
			BoxLabel:      p.OriginBox,
			PartnerName:   names[p.PartnerID],
		})
	}
	for _, v := range sales {
		split := SplitInvoiceNumber(v.InvoiceNum)
		rows = append(rows, OperationRow{
			Operation:     OpSale,
			Date:          v.Date.Format("2006-01-02"),
			InvoiceType:   normalizeType(v.InvoiceType),
			InvoiceNumber: v.InvoiceNum,
			PointOfSale:   split.PointOfSale,
			Sequence:      split.Sequence,
			Formatted:     split.Formatted,
			TaxID:         v.TaxID,
			Counterparty:  v.Customer,
			NetAmount:     shared.Round2(v.NetAmount),
			VAT21:         shared.Round2(v.VAT21),
			VAT105:        shared.Round2(v.VAT105),
			TotalWithVAT:  shared.Round2(v.Total()),
			Status:        v.Status,
			BoxLabel:      v.DestinationBox,
			PartnerName:   names[v.PartnerID],
		})
	}
	return rows, nil
}

// Filter applies the period and invoice-type constraints to flattened rows.
func Filter(rows []OperationRow, f RowFilter) []OperationRow {
	out := make([]OperationRow, 0, len(rows))
	explicit := strings.ToUpper(strings.TrimSpace(f.InvoiceType))
	for _, row := range rows {
		if f.YM != "" && !strings.HasPrefix(row.Date, f.YM) {
			continue
		}
		if !f.IncludeOtherTypes && !allowedInvoiceTypes[row.InvoiceType] {
			continue
		}
		if explicit != "" && row.InvoiceType != explicit {
			continue
		}
		out = append(out, row)
	}
	return out
}

// Totals groups rows by (period, operation type), summing the monetary
// fields. Groups are sorted ascending and periods that cannot be trusted,
// like the epoch bucket bad dates collapse into, are dropped.
func Totals(rows []OperationRow) []PeriodTypeTotal {
	type key struct {
		ym, op string
	}
	agg := make(map[key]*PeriodTypeTotal)
	for _, row := range rows {
		ym := ""
		if len(row.Date) >= 7 {
			ym = row.Date[:7]
		}
		if !shared.ValidPeriodKey(ym) {
			continue
		}
		k := key{ym, row.Operation}
		t, ok := agg[k]
		if !ok {
			t = &PeriodTypeTotal{YM: ym, Operation: row.Operation}
			agg[k] = t
		}
		t.NetAmount += row.NetAmount
		t.VAT21 += row.VAT21
		t.VAT105 += row.VAT105
		t.TotalWithVAT += row.TotalWithVAT
	}

	out := make([]PeriodTypeTotal, 0, len(agg))
	for _, t := range agg {
		t.NetAmount = shared.Round2(t.NetAmount)
		t.VAT21 = shared.Round2(t.VAT21)
		t.VAT105 = shared.Round2(t.VAT105)
		t.TotalWithVAT = shared.Round2(t.TotalWithVAT)
		t.TechnicalVATBalance = shared.Round2(t.VAT21 + t.VAT105)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].YM != out[j].YM {
			return out[i].YM < out[j].YM
		}
		return out[i].Operation < out[j].Operation
	})
	return out
}

// VATPositions derives the per-period reconciliation figures from totals
// alone, without going back to the raw rows.
func VATPositions(totals []PeriodTypeTotal) []VATPosition {
	byYM := make(map[string]*VATPosition)
	var order []string
	for _, t := range totals {
		pos, ok := byYM[t.YM]
		if !ok {
			pos = &VATPosition{YM: t.YM}
			byYM[t.YM] = pos
			order = append(order, t.YM)
		}
		switch t.Operation {
		case OpSale:
			pos.Sales += t.TechnicalVATBalance
		case OpPurchase:
			pos.Purchases += t.TechnicalVATBalance
		}
	}
	sort.Strings(order)

	out := make([]VATPosition, 0, len(order))
	for _, ym := range order {
		pos := byYM[ym]
		pos.Result = shared.Round2(pos.Sales - pos.Purchases)
		out = append(out, *pos)
	}
	return out
}

func normalizeType(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
