package arca

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oevi/oevi/internal/ledger"
)

type fakeStore struct {
	partners  []ledger.Partner
	purchases []ledger.Purchase
	sales     []ledger.Sale
}

func (f *fakeStore) ListPartners(ctx context.Context) ([]ledger.Partner, error) {
	return f.partners, nil
}

func (f *fakeStore) PurchasesByPeriod(ctx context.Context, _ ledger.RecordFilter) ([]ledger.Purchase, error) {
	return f.purchases, nil
}

func (f *fakeStore) SalesByPeriod(ctx context.Context, _ ledger.RecordFilter) ([]ledger.Sale, error) {
	return f.sales, nil
}

func day(d string) time.Time {
	t, err := time.Parse("2006-01-02", d)
	if err != nil {
		panic(err)
	}
	return t
}

func testRows(t *testing.T) []OperationRow {
	t.Helper()
	store := &fakeStore{
		partners: []ledger.Partner{{ID: 1, Name: "Ana", Category: ledger.CategoryPartner}},
		sales: []ledger.Sale{
			{Date: day("2025-07-01"), YM: "2025-07", Customer: "Cliente Uno", PartnerID: 1,
				NetAmount: 100, VAT21: 21, InvoiceType: "a", InvoiceNum: "1234567"},
			{Date: day("2025-07-15"), YM: "2025-07", Customer: "Cliente Dos",
				NetAmount: 100, VAT21: 21, InvoiceType: "A", InvoiceNum: "500012345678"},
			{Date: day("2025-07-20"), YM: "2025-07", Customer: "Cliente Tres",
				NetAmount: 30, VAT21: 6.3, InvoiceType: "N", InvoiceNum: "99"},
		},
		purchases: []ledger.Purchase{
			{Date: day("2025-07-03"), YM: "2025-07", Supplier: "Proveedor SRL",
				NetAmount: 50, VAT21: 10, InvoiceType: "A", InvoiceNum: "42"},
		},
	}
	rows, err := NewService(nil, store).Flatten(context.Background())
	require.NoError(t, err)
	return rows
}

func TestFlattenNormalizesRows(t *testing.T) {
	rows := testRows(t)
	require.Len(t, rows, 4)

	byNumber := make(map[string]OperationRow, len(rows))
	for _, r := range rows {
		byNumber[r.InvoiceNumber] = r
	}

	first := byNumber["1234567"]
	require.Equal(t, OpSale, first.Operation)
	require.Equal(t, "A", first.InvoiceType) // upper-cased
	require.Equal(t, "1", first.PointOfSale)
	require.Equal(t, "01234567", first.Sequence)
	require.Equal(t, "Ana", first.PartnerName)
	require.Equal(t, 121.0, first.TotalWithVAT) // zero-total fallback

	second := byNumber["500012345678"]
	require.Equal(t, "5000", second.PointOfSale)
	require.Equal(t, "12345678", second.Sequence)
	require.Empty(t, second.PartnerName)
}

func TestFilterAllowListAndNarrowing(t *testing.T) {
	rows := testRows(t)

	ab := Filter(rows, RowFilter{})
	require.Len(t, ab, 3)
	for _, r := range ab {
		require.Contains(t, []string{"A", "B"}, r.InvoiceType)
	}

	all := Filter(rows, RowFilter{IncludeOtherTypes: true})
	require.Len(t, all, 4)

	onlyN := Filter(rows, RowFilter{IncludeOtherTypes: true, InvoiceType: "N"})
	require.Len(t, onlyN, 1)
	require.Equal(t, "N", onlyN[0].InvoiceType)

	july := Filter(rows, RowFilter{YM: "2025-07"})
	require.Len(t, july, 3)
	require.Empty(t, Filter(rows, RowFilter{YM: "2024-01"}))
}

func TestTotalsReconciliation(t *testing.T) {
	rows := Filter(testRows(t), RowFilter{})
	totals := Totals(rows)
	require.Len(t, totals, 2)

	// Ascending (YM, operation) order puts COMPRA first.
	require.Equal(t, OpPurchase, totals[0].Operation)
	require.Equal(t, 10.0, totals[0].TechnicalVATBalance)
	require.Equal(t, OpSale, totals[1].Operation)
	require.Equal(t, 42.0, totals[1].TechnicalVATBalance)

	positions := VATPositions(totals)
	require.Len(t, positions, 1)
	require.Equal(t, "2025-07", positions[0].YM)
	require.Equal(t, 32.0, positions[0].Result)

	// The same figure must come out of the ungrouped rows directly.
	var direct float64
	for _, r := range rows {
		vat := r.VAT21 + r.VAT105
		if r.Operation == OpSale {
			direct += vat
		} else {
			direct -= vat
		}
	}
	require.InDelta(t, direct, positions[0].Result, 1e-9)
}

func TestTotalsDropsEpochBucket(t *testing.T) {
	rows := []OperationRow{
		{Operation: OpSale, Date: "1970-01-01", InvoiceType: "A", VAT21: 5},
		{Operation: OpSale, Date: "2025-07-01", InvoiceType: "A", VAT21: 5},
	}
	totals := Totals(rows)
	require.Len(t, totals, 1)
	require.Equal(t, "2025-07", totals[0].YM)
}
