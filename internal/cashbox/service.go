package cashbox

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"time"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/params"
	"github.com/oevi/oevi/internal/shared"
)

// Movement kinds.
const (
	KindPurchase = "COMPRA"
	KindSale     = "VENTA"
)

// groupSentinel sorts rows without a transaction group after every real id.
const groupSentinel = "\uffff"

// Movement is one signed cash entry in a box.
type Movement struct {
	Date         time.Time `json:"fecha"`
	YM           string    `json:"ym"`
	Box          string    `json:"caja"`
	Kind         string    `json:"tipo"`
	Counterparty string    `json:"contraparte"`
	Description  string    `json:"descripcion"`
	Amount       float64   `json:"importe"`
	// TransactionID groups related movements; empty means ungrouped.
	TransactionID string `json:"transaccion_id,omitempty"`
	// ColorIndex is a display hint in [0, N); nil for ungrouped rows so
	// "ungrouped" stays distinguishable from "grouped color 0".
	ColorIndex *int `json:"color,omitempty"`
}

// Filter narrows the ledger slice a report covers.
type Filter struct {
	Period           shared.Period
	Box              string
	TransactionGroup string
}

// RecordSource is the slice of the ledger the cash-box report reads.
type RecordSource interface {
	PurchasesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Purchase, error)
	SalesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Sale, error)
}

// Service builds per-box movement lists and balances.
type Service struct {
	logger     *slog.Logger
	store      RecordSource
	params     *params.Resolver
	colorCount int
}

// NewService constructs the cash-box service. colorCount sets how many
// display colors transaction groups rotate through.
func NewService(logger *slog.Logger, store RecordSource, resolver *params.Resolver, colorCount int) *Service {
	if colorCount <= 0 {
		colorCount = 8
	}
	return &Service{logger: logger, store: store, params: resolver, colorCount: colorCount}
}

// Summarize returns movements grouped by cash box plus the balance per box.
// Purchase egress is the net cost plus the VAT that cannot be recovered;
// reclaimed VAT never leaves the box. Sale ingress is the gross total.
func (s *Service) Summarize(ctx context.Context, f Filter) (map[string][]Movement, map[string]float64, error) {
	normalPct, err := s.params.GetOrDefault(ctx, params.KeyNormalDeductiblePct, params.DefaultNormalDeductiblePct)
	if err != nil {
		return nil, nil, err
	}
	personalPct, err := s.params.GetOrDefault(ctx, params.KeyPersonalDeductiblePct, params.DefaultPersonalDeductiblePct)
	if err != nil {
		return nil, nil, err
	}

	recordFilter := ledger.RecordFilter{Period: f.Period, Box: f.Box}
	purchases, err := s.store.PurchasesByPeriod(ctx, recordFilter)
	if err != nil {
		return nil, nil, err
	}
	sales, err := s.store.SalesByPeriod(ctx, recordFilter)
	if err != nil {
		return nil, nil, err
	}

	var movements []Movement
	for _, p := range purchases {
		if p.OriginBox == "" {
			continue
		}
		if f.TransactionGroup != "" && p.TransactionID != f.TransactionGroup {
			continue
		}
		movements = append(movements, Movement{
			Date:          p.Date,
			YM:            p.YM,
			Box:           p.OriginBox,
			Kind:          KindPurchase,
			Counterparty:  p.Supplier,
			Description:   p.Description,
			Amount:        -(p.NetAmount + ledger.NonDeductibleVAT(p, normalPct, personalPct)),
			TransactionID: p.TransactionID,
			ColorIndex:    s.colorFor(p.TransactionID),
		})
	}
	for _, sale := range sales {
		if sale.DestinationBox == "" {
			continue
		}
		if f.TransactionGroup != "" && sale.TransactionID != f.TransactionGroup {
			continue
		}
		movements = append(movements, Movement{
			Date:          sale.Date,
			YM:            sale.YM,
			Box:           sale.DestinationBox,
			Kind:          KindSale,
			Counterparty:  sale.Customer,
			Description:   sale.Description,
			Amount:        sale.Total(),
			TransactionID: sale.TransactionID,
			ColorIndex:    s.colorFor(sale.TransactionID),
		})
	}

	// Two-pass stable sort: date descending first, then group id ascending.
	// Stability keeps the date order within each group.
	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Date.After(movements[j].Date)
	})
	sort.SliceStable(movements, func(i, j int) bool {
		return groupKey(movements[i]) < groupKey(movements[j])
	})

	byBox := make(map[string][]Movement)
	balances := make(map[string]float64)
	for _, m := range movements {
		byBox[m.Box] = append(byBox[m.Box], m)
		balances[m.Box] += m.Amount
	}
	for box, total := range balances {
		balances[box] = shared.Round2(total)
	}
	return byBox, balances, nil
}

// Balances returns just the per-box balances for a period.
func (s *Service) Balances(ctx context.Context, period shared.Period) (map[string]float64, error) {
	_, balances, err := s.Summarize(ctx, Filter{Period: period})
	return balances, err
}

func groupKey(m Movement) string {
	if m.TransactionID == "" {
		return groupSentinel
	}
	return m.TransactionID
}

// colorFor assigns a stable display color to a transaction group. Any
// uniformly distributing hash works; only determinism matters.
func (s *Service) colorFor(transactionID string) *int {
	if transactionID == "" {
		return nil
	}
	h := fnv.New32a()
	h.Write([]byte(transactionID))
	idx := int(h.Sum32() % uint32(s.colorCount))
	return &idx
}
