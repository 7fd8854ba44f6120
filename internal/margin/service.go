package margin

import (
	"context"
	"log/slog"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/params"
	"github.com/oevi/oevi/internal/shared"
)

// Rates are the three distribution percentages resolved for a summary run.
type Rates struct {
	Company float64 `json:"p_empresa"`
	Vendor  float64 `json:"p_vendedor"`
	Partner float64 `json:"p_socio"`
}

// PartnerSummary is one output row of the per-partner margin report.
type PartnerSummary struct {
	Period              string  `json:"ym"`
	PartnerID           int64   `json:"socio_id"`
	Name                string  `json:"nombre_socio"`
	Category            string  `json:"tipo"`
	NetSales            float64 `json:"ventas_sin_iva"`
	NetPurchases        float64 `json:"compras_sin_iva"`
	NetGain             float64 `json:"ganancia_neta"`
	CompanyMargin       float64 `json:"margen_empresa"`
	VendorMargin        float64 `json:"margen_vendedor"`
	PartnerMargin       float64 `json:"margen_socios"`
	OtherPartnersMargin float64 `json:"margen_otros_socios"`
	TotalMargins        float64 `json:"total_margenes"`
	CashBoxTotal        float64 `json:"total_caja"`
	Residual            float64 `json:"resto"`
}

// RecordSource is the slice of the ledger the margin engine reads.
type RecordSource interface {
	ListPartners(ctx context.Context) ([]ledger.Partner, error)
	PurchasesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Purchase, error)
	SalesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Sale, error)
}

// BoxBalances supplies per-cash-box balances for the same period, keyed by
// box label. Box labels that match a partner name enrich that partner's row.
type BoxBalances interface {
	Balances(ctx context.Context, period shared.Period) (map[string]float64, error)
}

// Service computes the per-partner margin distribution.
type Service struct {
	logger          *slog.Logger
	store           RecordSource
	params          *params.Resolver
	boxes           BoxBalances
	companyBoxOwner string
}

// NewService constructs the margin service. companyBoxOwner names the one
// partner whose cash balance keeps its sign in the residual computation.
func NewService(logger *slog.Logger, store RecordSource, resolver *params.Resolver, boxes BoxBalances, companyBoxOwner string) *Service {
	return &Service{
		logger:          logger,
		store:           store,
		params:          resolver,
		boxes:           boxes,
		companyBoxOwner: companyBoxOwner,
	}
}

// Summarize builds one row per partner for the period. Every partner appears
// even with no activity; rows not attributed to any partner are ignored.
func (s *Service) Summarize(ctx context.Context, period shared.Period) ([]PartnerSummary, Rates, error) {
	rates, err := s.resolveRates(ctx)
	if err != nil {
		return nil, Rates{}, err
	}

	partners, err := s.store.ListPartners(ctx)
	if err != nil {
		return nil, Rates{}, err
	}
	if len(partners) == 0 {
		return []PartnerSummary{}, rates, nil
	}

	filter := ledger.RecordFilter{Period: period}
	purchases, err := s.store.PurchasesByPeriod(ctx, filter)
	if err != nil {
		return nil, Rates{}, err
	}
	sales, err := s.store.SalesByPeriod(ctx, filter)
	if err != nil {
		return nil, Rates{}, err
	}

	netSales := make(map[int64]float64, len(partners))
	netPurchases := make(map[int64]float64, len(partners))
	for _, sale := range sales {
		if sale.PartnerID > 0 {
			netSales[sale.PartnerID] += sale.NetAmount
		}
	}
	for _, purchase := range purchases {
		if purchase.PartnerID > 0 {
			netPurchases[purchase.PartnerID] += purchase.NetAmount
		}
	}

	// All gains must be known before any cross term is computed.
	gains := make(map[int64]float64, len(partners))
	for _, p := range partners {
		gains[p.ID] = netSales[p.ID] - netPurchases[p.ID]
	}

	var balances map[string]float64
	if s.boxes != nil {
		balances, err = s.boxes.Balances(ctx, period)
		if err != nil {
			return nil, Rates{}, err
		}
	}

	periodLabel := period.String()
	rows := make([]PartnerSummary, 0, len(partners))
	for _, p := range partners {
		gn := gains[p.ID]

		row := PartnerSummary{
			Period:        periodLabel,
			PartnerID:     p.ID,
			Name:          p.Name,
			Category:      p.Category,
			NetSales:      shared.Round2(netSales[p.ID]),
			NetPurchases:  shared.Round2(netPurchases[p.ID]),
			NetGain:       shared.Round2(gn),
			CompanyMargin: shared.Round2(gn * rates.Company),
			VendorMargin:  shared.Round2(gn * rates.Vendor),
		}
		if p.IsPartnerCategory() {
			row.PartnerMargin = shared.Round2(gn * rates.Partner)
		}

		var others float64
		for _, o := range partners {
			if o.ID == p.ID || o.Category != ledger.CategoryPartner {
				continue
			}
			switch p.Category {
			case ledger.CategoryPartner:
				others += shared.Round2(gains[o.ID] * rates.Partner)
			case ledger.CategoryCompany:
				others += shared.Round2(gains[o.ID] * rates.Company)
			}
		}
		row.OtherPartnersMargin = shared.Round2(others)
		row.TotalMargins = shared.Round2(row.VendorMargin + row.PartnerMargin + row.OtherPartnersMargin)

		row.CashBoxTotal = balances[p.Name]
		row.Residual = s.residual(p.Name, row.CashBoxTotal, row.TotalMargins)

		rows = append(rows, row)
	}
	return rows, rates, nil
}

// residual subtracts the accumulated margins from the partner's cash-box
// balance. For everyone except the configured company box owner a negative
// balance enters as its absolute value. Flagged for confirmation with the
// domain owner; the asymmetry matches observed ledger behavior.
func (s *Service) residual(name string, boxTotal, totalMargins float64) float64 {
	if name != s.companyBoxOwner {
		boxTotal = abs(boxTotal)
	}
	return shared.Round2(boxTotal - totalMargins)
}

func (s *Service) resolveRates(ctx context.Context) (Rates, error) {
	company, err := s.params.GetAny(ctx, []string{params.KeyCompanyMargin}, params.DefaultCompanyMargin)
	if err != nil {
		return Rates{}, err
	}
	vendor, err := s.params.GetAny(ctx, []string{params.KeyVendorMargin}, params.DefaultVendorMargin)
	if err != nil {
		return Rates{}, err
	}
	partner, err := s.params.GetAny(ctx, []string{params.KeyPartnerMargin}, params.DefaultPartnerMargin)
	if err != nil {
		return Rates{}, err
	}
	return Rates{Company: company, Vendor: vendor, Partner: partner}, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
