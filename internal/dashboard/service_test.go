package dashboard

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/params"
	"github.com/oevi/oevi/internal/shared"
)

type mockStore struct {
	partners      []ledger.Partner
	purchases     []ledger.Purchase
	sales         []ledger.Sale
	overdueP      int
	overdueS      int
	purchaseCalls int
}

func (m *mockStore) ListPartners(ctx context.Context) ([]ledger.Partner, error) {
	return m.partners, nil
}

func (m *mockStore) PurchasesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Purchase, error) {
	m.purchaseCalls++
	var out []ledger.Purchase
	for _, p := range m.purchases {
		if f.Period.Matches(p.YM) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockStore) SalesByPeriod(ctx context.Context, f ledger.RecordFilter) ([]ledger.Sale, error) {
	var out []ledger.Sale
	for _, s := range m.sales {
		if f.Period.Matches(s.YM) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStore) CountOverdue(ctx context.Context, f ledger.RecordFilter) (int, int, error) {
	return m.overdueP, m.overdueS, nil
}

type memoryParams map[string]float64

func (m memoryParams) Get(ctx context.Context, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return v, nil
}

func (m memoryParams) Ensure(ctx context.Context, key string, value float64) (float64, error) {
	if existing, ok := m[key]; ok {
		return existing, nil
	}
	m[key] = value
	return value, nil
}

func (m memoryParams) Put(ctx context.Context, key string, value float64) error {
	m[key] = value
	return nil
}

func newTestService(t *testing.T, store *mockStore) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(nil, store, params.NewResolver(memoryParams{}), cache)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func half() *float64 {
	v := 0.5
	return &v
}

func july() shared.Period {
	p, err := shared.ParsePeriod("2025-07")
	if err != nil {
		panic(err)
	}
	return p
}

func TestSummarizeComputesPeriodTotals(t *testing.T) {
	store := &mockStore{
		partners: []ledger.Partner{
			{ID: 1, Name: "Ana", Category: ledger.CategoryPartner},
		},
		sales: []ledger.Sale{
			{YM: "2025-07", PartnerID: 1, NetAmount: 1000, VAT21: 210},
			{YM: "2025-06", PartnerID: 1, NetAmount: 500, VAT21: 105}, // other period
		},
		purchases: []ledger.Purchase{
			{YM: "2025-07", PartnerID: 1, NetAmount: 400, VAT21: 84},
			{YM: "2025-07", NetAmount: 100, VAT21: 21, Personal: true},
			{YM: "2025-07", NetAmount: 50, VAT21: 10.5, Personal: true, DeductiblePct: half()},
		},
		overdueP: 2,
		overdueS: 1,
	}
	svc, cleanup := newTestService(t, store)
	defer cleanup()

	got, err := svc.Summarize(context.Background(), july())
	require.NoError(t, err)

	require.Equal(t, "2025-07", got.Period)
	require.Equal(t, 1000.0, got.NetSales)
	require.Equal(t, 210.0, got.SalesVAT)
	require.Equal(t, 1210.0, got.SalesTotal)
	require.Equal(t, 550.0, got.NetPurchases)
	require.Equal(t, 115.5, got.PurchaseVAT)

	// Normal purchase fully creditable, personal rows at 50%.
	require.Equal(t, 84.0+10.5+5.25, got.CreditableVAT)
	require.Equal(t, 31.5, got.PersonalVATTotal)
	require.Equal(t, 15.75, got.PersonalVATCompany)
	require.Equal(t, 15.75, got.PersonalVATPartner)

	require.Equal(t, 450.0, got.NetGain)
	require.Equal(t, shared.Round2(210-99.75), got.VATPayable)
	require.Equal(t, 2, got.OverduePurchases)
	require.Equal(t, 1, got.OverdueSales)

	require.Len(t, got.PerPartner, 1)
	require.Equal(t, 600.0, got.PerPartner[0].NetGain)
}

func TestSummarizeCachesUntilInvalidated(t *testing.T) {
	store := &mockStore{
		sales: []ledger.Sale{{YM: "2025-07", NetAmount: 100}},
	}
	svc, cleanup := newTestService(t, store)
	defer cleanup()
	ctx := context.Background()

	_, err := svc.Summarize(ctx, july())
	require.NoError(t, err)
	_, err = svc.Summarize(ctx, july())
	require.NoError(t, err)
	require.Equal(t, 1, store.purchaseCalls)

	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Summarize(ctx, july())
	require.NoError(t, err)
	require.Equal(t, 2, store.purchaseCalls)
}

func TestSummarizeWorksWithoutCache(t *testing.T) {
	store := &mockStore{sales: []ledger.Sale{{YM: "2025-07", NetAmount: 100, VAT21: 21}}}
	svc := NewService(nil, store, params.NewResolver(memoryParams{}), nil)

	got, err := svc.Summarize(context.Background(), july())
	require.NoError(t, err)
	require.Equal(t, 121.0, got.SalesTotal)
}
