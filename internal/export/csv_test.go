package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oevi/oevi/internal/arca"
	"github.com/oevi/oevi/internal/cashbox"
	"github.com/oevi/oevi/internal/dashboard"
	"github.com/oevi/oevi/internal/margin"
)

func TestWritePartnerSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []margin.PartnerSummary{{
		Period: "2025-07", Name: "Ana", NetGain: 600,
		CompanyMargin: 318, VendorMargin: 120, PartnerMargin: 54,
		OtherPartnersMargin: 45, TotalMargins: 219, CashBoxTotal: 250, Residual: 31,
	}}
	require.NoError(t, WritePartnerSummaryCSV(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "Margen_Otros_Socios")
	require.Equal(t, "2025-07,Ana,600.00,318.00,120.00,54.00,45.00,219.00,250.00,31.00", lines[1])
}

func TestWriteCashboxCSVAppendsBalances(t *testing.T) {
	var buf bytes.Buffer
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	movements := map[string][]cashbox.Movement{
		"CAJA1": {{Date: date, Kind: cashbox.KindSale, Counterparty: "Cliente", Amount: 121}},
	}
	balances := map[string]float64{"CAJA1": 121}
	require.NoError(t, WriteCashboxCSV(&buf, []string{"CAJA1"}, movements, balances))

	out := buf.String()
	require.Contains(t, out, "CAJA1,2025-07-01,VENTA,Cliente,,121.00,")
	require.Contains(t, out, "saldo,121.00")
}

func TestWriteTotalsCSVIncludesReconciliation(t *testing.T) {
	var buf bytes.Buffer
	totals := []arca.PeriodTypeTotal{
		{YM: "2025-07", Operation: arca.OpPurchase, VAT21: 10, TechnicalVATBalance: 10},
		{YM: "2025-07", Operation: arca.OpSale, VAT21: 42, TechnicalVATBalance: 42},
	}
	positions := []arca.VATPosition{{YM: "2025-07", Sales: 42, Purchases: 10, Result: 32}}
	require.NoError(t, WriteTotalsCSV(&buf, totals, positions))

	out := buf.String()
	require.Contains(t, out, "Saldo_Tecnico_IVA")
	require.Contains(t, out, "2025-07,42.00,10.00,32.00")
}

func TestWriteDashboardCSV(t *testing.T) {
	var buf bytes.Buffer
	summary := dashboard.Summary{
		Period: "2025-07", NetSales: 1000, SalesVAT: 210, SalesTotal: 1210,
		PerPartner: []dashboard.PartnerGain{{Name: "Ana", NetSales: 1000, NetGain: 1000}},
	}
	require.NoError(t, WriteDashboardCSV(&buf, summary))

	out := buf.String()
	require.Contains(t, out, "ventas_monto_total,1210.00")
	require.Contains(t, out, "Ana,1000.00,0.00,1000.00")
}
