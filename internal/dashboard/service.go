package dashboard

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/params"
	"github.com/oevi/oevi/internal/shared"
)

// PartnerGain is the per-partner net position shown on the dashboard.
type PartnerGain struct {
	Name         string  `json:"nombre"`
	NetSales     float64 `json:"ventas_sin_iva"`
	NetPurchases float64 `json:"compras_sin_iva"`
	NetGain      float64 `json:"ganancia_neta"`
}

// Summary is the period overview the dashboard renders.
type Summary struct {
	Period string `json:"ym"`

	SalesTotal    float64 `json:"ventas_monto_total"`
	SalesVAT      float64 `json:"iva_venta"`
	NetSales      float64 `json:"ventas_sin_iva"`
	PurchaseTotal float64 `json:"compras_monto_total"`
	PurchaseVAT   float64 `json:"iva_compra_total"`
	NetPurchases  float64 `json:"compras_sin_iva"`

	CreditableVAT float64 `json:"iva_compra_creditable"`
	NetGain       float64 `json:"ganancia_neta"`
	VATPayable    float64 `json:"iva_a_pagar"`

	PersonalVATTotal   float64 `json:"iva_personal_total"`
	PersonalVATCompany float64 `json:"iva_personal_credito_empresa"`
	PersonalVATPartner float64 `json:"iva_personal_credito_socios"`

	OverduePurchases int `json:"adeudado_compras"`
	OverdueSales     int `json:"adeudado_ventas"`

	PerPartner []PartnerGain `json:"per_socio"`
}

// RecordSource is the slice of the ledger the dashboard reads.
type RecordSource interface {
	ListPartners(ctx context.Context) ([]ledger.Partner, error)
	PurchasesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Purchase, error)
	SalesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Sale, error)
	CountOverdue(ctx context.Context, f ledger.RecordFilter) (purchases, sales int, err error)
}

// Service computes the dashboard summary, memoised through the versioned
// cache and collapsed under singleflight so one period is computed once no
// matter how many requests land together.
type Service struct {
	logger *slog.Logger
	store  RecordSource
	params *params.Resolver
	cache  *Cache
	group  singleflight.Group
}

// NewService constructs the dashboard service. cache may be nil.
func NewService(logger *slog.Logger, store RecordSource, resolver *params.Resolver, cache *Cache) *Service {
	return &Service{logger: logger, store: store, params: resolver, cache: cache}
}

// Summarize returns the dashboard summary for the period.
func (s *Service) Summarize(ctx context.Context, period shared.Period) (Summary, error) {
	label := period.String()
	key, err := s.cache.BuildKey(ctx, summaryKeyParts(label)...)
	if err != nil {
		return Summary{}, err
	}

	result, err, _ := s.group.Do(key, func() (interface{}, error) {
		var summary Summary
		err := s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (interface{}, error) {
			return s.compute(ctx, period)
		})
		return summary, err
	})
	if err != nil {
		return Summary{}, err
	}
	return result.(Summary), nil
}

// Invalidate drops all cached summaries. Called after imports change the
// underlying records.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) compute(ctx context.Context, period shared.Period) (Summary, error) {
	normalPct, err := s.params.GetOrDefault(ctx, params.KeyNormalDeductiblePct, params.DefaultNormalDeductiblePct)
	if err != nil {
		return Summary{}, err
	}
	personalPct, err := s.params.GetOrDefault(ctx, params.KeyPersonalDeductiblePct, params.DefaultPersonalDeductiblePct)
	if err != nil {
		return Summary{}, err
	}

	filter := ledger.RecordFilter{Period: period}
	purchases, err := s.store.PurchasesByPeriod(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	sales, err := s.store.SalesByPeriod(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	overduePurchases, overdueSales, err := s.store.CountOverdue(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	partners, err := s.store.ListPartners(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Period:           period.String(),
		OverduePurchases: overduePurchases,
		OverdueSales:     overdueSales,
	}

	for _, sale := range sales {
		summary.NetSales += sale.NetAmount
		summary.SalesVAT += sale.VATTotal()
	}
	for _, p := range purchases {
		summary.NetPurchases += p.NetAmount
		summary.PurchaseVAT += p.VATTotal()
	}

	credit := ledger.AccumulateCreditable(purchases, normalPct, personalPct)
	summary.CreditableVAT = credit.Creditable
	summary.PersonalVATTotal = credit.PersonalVATTotal
	summary.PersonalVATCompany = credit.PersonalCreditable
	summary.PersonalVATPartner = credit.PersonalVATTotal - credit.PersonalCreditable
	if summary.PersonalVATPartner < 0 {
		summary.PersonalVATPartner = 0
	}

	summary.SalesTotal = summary.NetSales + summary.SalesVAT
	summary.PurchaseTotal = summary.NetPurchases + summary.PurchaseVAT
	summary.NetGain = summary.NetSales - summary.NetPurchases
	summary.VATPayable = summary.SalesVAT - summary.CreditableVAT

	netSales := make(map[int64]float64, len(partners))
	netPurchases := make(map[int64]float64, len(partners))
	for _, sale := range sales {
		if sale.PartnerID > 0 {
			netSales[sale.PartnerID] += sale.NetAmount
		}
	}
	for _, p := range purchases {
		if p.PartnerID > 0 {
			netPurchases[p.PartnerID] += p.NetAmount
		}
	}
	summary.PerPartner = make([]PartnerGain, 0, len(partners))
	for _, p := range partners {
		summary.PerPartner = append(summary.PerPartner, PartnerGain{
			Name:         p.Name,
			NetSales:     shared.Round2(netSales[p.ID]),
			NetPurchases: shared.Round2(netPurchases[p.ID]),
			NetGain:      shared.Round2(netSales[p.ID] - netPurchases[p.ID]),
		})
	}

	summary.NetSales = shared.Round2(summary.NetSales)
	summary.NetPurchases = shared.Round2(summary.NetPurchases)
	summary.SalesVAT = shared.Round2(summary.SalesVAT)
	summary.PurchaseVAT = shared.Round2(summary.PurchaseVAT)
	summary.SalesTotal = shared.Round2(summary.SalesTotal)
	summary.PurchaseTotal = shared.Round2(summary.PurchaseTotal)
	summary.CreditableVAT = shared.Round2(summary.CreditableVAT)
	summary.NetGain = shared.Round2(summary.NetGain)
	summary.VATPayable = shared.Round2(summary.VATPayable)
	summary.PersonalVATTotal = shared.Round2(summary.PersonalVATTotal)
	summary.PersonalVATCompany = shared.Round2(summary.PersonalVATCompany)
	summary.PersonalVATPartner = shared.Round2(summary.PersonalVATPartner)

	return summary, nil
}
