package cashbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/params"
	"github.com/oevi/oevi/internal/shared"
)

type fakeStore struct {
	purchases []ledger.Purchase
	sales     []ledger.Sale
}

func (f *fakeStore) PurchasesByPeriod(ctx context.Context, filter ledger.RecordFilter) ([]ledger.Purchase, error) {
	var out []ledger.Purchase
	for _, p := range f.purchases {
		if filter.Period.Matches(p.YM) && (filter.Box == "" || p.OriginBox == filter.Box) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) SalesByPeriod(ctx context.Context, filter ledger.RecordFilter) ([]ledger.Sale, error) {
	var out []ledger.Sale
	for _, s := range f.sales {
		if filter.Period.Matches(s.YM) && (filter.Box == "" || s.DestinationBox == filter.Box) {
			out = append(out, s)
		}
	}
	return out, nil
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

func day(d string) time.Time {
	t, err := time.Parse("2006-01-02", d)
	if err != nil {
		panic(err)
	}
	return t
}

func july() shared.Period {
	p, err := shared.ParsePeriod("2025-07")
	if err != nil {
		panic(err)
	}
	return p
}

func TestSummarizeBalance(t *testing.T) {
	// A sale with a stored zero total falls back to net plus VAT, and a
	// fully deductible purchase only drains its net cost from the box.
	store := &fakeStore{
		sales: []ledger.Sale{{
			Date: day("2025-07-01"), YM: "2025-07", Customer: "Cliente SA",
			NetAmount: 100, VAT21: 21, TotalWithVAT: 0,
			InvoiceType: "A", DestinationBox: "CAJA1",
		}},
		purchases: []ledger.Purchase{{
			Date: day("2025-07-03"), YM: "2025-07", Supplier: "Proveedor SRL",
			NetAmount: 50, VAT21: 10,
			InvoiceType: "A", OriginBox: "CAJA1",
		}},
	}
	svc := NewService(nil, store, params.NewResolver(memoryParams{}), 8)

	byBox, balances, err := svc.Summarize(context.Background(), Filter{Period: july()})
	require.NoError(t, err)
	require.Len(t, byBox["CAJA1"], 2)
	require.Equal(t, 71.0, balances["CAJA1"])
}

func TestSummarizeEgressKeepsNonDeductibleVAT(t *testing.T) {
	half := 0.5
	store := &fakeStore{
		purchases: []ledger.Purchase{{
			Date: day("2025-07-05"), YM: "2025-07", Supplier: "Proveedor SRL",
			NetAmount: 200, VAT21: 42, DeductiblePct: &half,
			OriginBox: "CAJA2",
		}},
	}
	svc := NewService(nil, store, params.NewResolver(memoryParams{}), 8)

	_, balances, err := svc.Summarize(context.Background(), Filter{Period: july()})
	require.NoError(t, err)
	// Half the VAT is unrecoverable and leaves the box with the net cost.
	require.Equal(t, -221.0, balances["CAJA2"])
}

func TestSummarizeSkipsRowsWithoutBox(t *testing.T) {
	store := &fakeStore{
		sales: []ledger.Sale{{Date: day("2025-07-01"), YM: "2025-07", NetAmount: 100, TotalWithVAT: 100}},
	}
	svc := NewService(nil, store, params.NewResolver(memoryParams{}), 8)

	byBox, balances, err := svc.Summarize(context.Background(), Filter{Period: july()})
	require.NoError(t, err)
	require.Empty(t, byBox)
	require.Empty(t, balances)
}

func TestSummarizeOrderingAndColors(t *testing.T) {
	store := &fakeStore{
		sales: []ledger.Sale{
			{Date: day("2025-07-10"), YM: "2025-07", DestinationBox: "CAJA1", TotalWithVAT: 1},
			{Date: day("2025-07-02"), YM: "2025-07", DestinationBox: "CAJA1", TotalWithVAT: 2, TransactionID: "G1"},
			{Date: day("2025-07-08"), YM: "2025-07", DestinationBox: "CAJA1", TotalWithVAT: 3, TransactionID: "G1"},
			{Date: day("2025-07-05"), YM: "2025-07", DestinationBox: "CAJA1", TotalWithVAT: 4, TransactionID: "G2"},
		},
	}
	svc := NewService(nil, store, params.NewResolver(memoryParams{}), 8)

	byBox, _, err := svc.Summarize(context.Background(), Filter{Period: july()})
	require.NoError(t, err)
	moves := byBox["CAJA1"]
	require.Len(t, moves, 4)

	// Grouped rows come first, ordered by group id, newest first within a
	// group. The ungrouped row sorts last and carries no color.
	require.Equal(t, []float64{3, 2, 4, 1}, []float64{moves[0].Amount, moves[1].Amount, moves[2].Amount, moves[3].Amount})
	require.Nil(t, moves[3].ColorIndex)

	require.NotNil(t, moves[0].ColorIndex)
	require.Equal(t, *moves[0].ColorIndex, *moves[1].ColorIndex)
	for _, m := range moves[:3] {
		require.GreaterOrEqual(t, *m.ColorIndex, 0)
		require.Less(t, *m.ColorIndex, 8)
	}
}

func TestSummarizeTransactionGroupFilter(t *testing.T) {
	store := &fakeStore{
		sales: []ledger.Sale{
			{Date: day("2025-07-02"), YM: "2025-07", DestinationBox: "CAJA1", TotalWithVAT: 2, TransactionID: "G1"},
			{Date: day("2025-07-05"), YM: "2025-07", DestinationBox: "CAJA1", TotalWithVAT: 4, TransactionID: "G2"},
		},
	}
	svc := NewService(nil, store, params.NewResolver(memoryParams{}), 8)

	byBox, balances, err := svc.Summarize(context.Background(), Filter{Period: july(), TransactionGroup: "G2"})
	require.NoError(t, err)
	require.Len(t, byBox["CAJA1"], 1)
	require.Equal(t, 4.0, balances["CAJA1"])
}
