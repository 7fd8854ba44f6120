package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/oevi/oevi/internal/arca"
	"github.com/oevi/oevi/internal/cashbox"
	"github.com/oevi/oevi/internal/dashboard"
	"github.com/oevi/oevi/internal/margin"
)

// WriteDashboardCSV serialises the period overview as metric/value pairs,
// followed by the per-partner breakdown.
func WriteDashboardCSV(w io.Writer, summary dashboard.Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Metric", "Value"}); err != nil {
		return err
	}
	records := [][]string{
		{"YM", summary.Period},
		{"ventas_sin_iva", formatFloat(summary.NetSales)},
		{"iva_venta", formatFloat(summary.SalesVAT)},
		{"ventas_monto_total", formatFloat(summary.SalesTotal)},
		{"compras_sin_iva", formatFloat(summary.NetPurchases)},
		{"iva_compra_total", formatFloat(summary.PurchaseVAT)},
		{"compras_monto_total", formatFloat(summary.PurchaseTotal)},
		{"iva_compra_creditable", formatFloat(summary.CreditableVAT)},
		{"ganancia_neta", formatFloat(summary.NetGain)},
		{"iva_a_pagar", formatFloat(summary.VATPayable)},
		{"iva_personal_total", formatFloat(summary.PersonalVATTotal)},
		{"iva_personal_credito_empresa", formatFloat(summary.PersonalVATCompany)},
		{"iva_personal_credito_socios", formatFloat(summary.PersonalVATPartner)},
		{"adeudado_compras", strconv.Itoa(summary.OverduePurchases)},
		{"adeudado_ventas", strconv.Itoa(summary.OverdueSales)},
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"nombre", "ventas_sin_iva", "compras_sin_iva", "ganancia_neta"}); err != nil {
		return err
	}
	for _, p := range summary.PerPartner {
		record := []string{p.Name, formatFloat(p.NetSales), formatFloat(p.NetPurchases), formatFloat(p.NetGain)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WritePartnerSummaryCSV serialises the per-partner margin report.
func WritePartnerSummaryCSV(w io.Writer, rows []margin.PartnerSummary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"YM", "nombre_socio", "Ganancia_neta", "Margen_Empresa", "Margen_Vendedor",
		"Margen_Socios", "Margen_Otros_Socios", "Total_Margenes", "Total_Caja", "Resto",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Period,
			row.Name,
			formatFloat(row.NetGain),
			formatFloat(row.CompanyMargin),
			formatFloat(row.VendorMargin),
			formatFloat(row.PartnerMargin),
			formatFloat(row.OtherPartnersMargin),
			formatFloat(row.TotalMargins),
			formatFloat(row.CashBoxTotal),
			formatFloat(row.Residual),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteCashboxCSV emits one section per cash box: its movements followed by
// the box balance.
func WriteCashboxCSV(w io.Writer, boxes []string, movements map[string][]cashbox.Movement, balances map[string]float64) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"caja", "fecha", "tipo", "contraparte", "descripcion", "importe", "transaccion_id"}); err != nil {
		return err
	}
	for _, box := range boxes {
		for _, m := range movements[box] {
			record := []string{
				box,
				m.Date.Format("2006-01-02"),
				m.Kind,
				m.Counterparty,
				m.Description,
				formatFloat(m.Amount),
				m.TransactionID,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
		if err := writer.Write([]string{box, "", "", "", "saldo", formatFloat(balances[box]), ""}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteOperationsCSV serialises the flattened fiscal operation rows.
func WriteOperationsCSV(w io.Writer, rows []arca.OperationRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"tipo_operacion", "fecha", "tipo_comprobante", "NRO_FACTURA", "NRO_FACTURA_FMT",
		"PUNTO_VENTA", "NRO_COMPROBANTE", "CUIT", "Denominacion",
		"PESOS_SIN_IVA", "IVA_21", "IVA_105", "TOTAL_CON_IVA",
		"estado", "origen_destino", "nombre_socio",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Operation,
			row.Date,
			row.InvoiceType,
			row.InvoiceNumber,
			row.Formatted,
			row.PointOfSale,
			row.Sequence,
			row.TaxID,
			row.Counterparty,
			formatFloat(row.NetAmount),
			formatFloat(row.VAT21),
			formatFloat(row.VAT105),
			formatFloat(row.TotalWithVAT),
			row.Status,
			row.BoxLabel,
			row.PartnerName,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTotalsCSV serialises the grouped fiscal totals and the per-period
// reconciliation lines.
func WriteTotalsCSV(w io.Writer, totals []arca.PeriodTypeTotal, positions []arca.VATPosition) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"YM", "tipo_operacion", "PESOS_SIN_IVA", "IVA_21", "IVA_105", "TOTAL_CON_IVA", "Saldo_Tecnico_IVA"}); err != nil {
		return err
	}
	for _, t := range totals {
		record := []string{
			t.YM,
			t.Operation,
			formatFloat(t.NetAmount),
			formatFloat(t.VAT21),
			formatFloat(t.VAT105),
			formatFloat(t.TotalWithVAT),
			formatFloat(t.TechnicalVATBalance),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	if err := writer.Write(nil); err != nil {
		return err
	}
	if err := writer.Write([]string{"YM", "ventas", "compras", "resultado"}); err != nil {
		return err
	}
	for _, p := range positions {
		record := []string{p.YM, formatFloat(p.Sales), formatFloat(p.Purchases), formatFloat(p.Result)}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
