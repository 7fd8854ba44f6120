package arca

import "strings"

// InvoiceSplit is an invoice number separated into its fiscal components.
type InvoiceSplit struct {
	PointOfSale string `json:"punto_venta"`
	Sequence    string `json:"nro_comprobante"`
	Formatted   string `json:"nro_factura_fmt"`
}

// SplitInvoiceNumber separates a raw invoice number into a point of sale and
// an 8-digit sequence. The rightmost 8 digits are the sequence; any leading
// digits form the point of sale, with leading zeros stripped and "1" used
// when nothing remains. The formatted form pads the point of sale to 4.
func SplitInvoiceNumber(raw string) InvoiceSplit {
	var digits strings.Builder
	for _, ch := range strings.TrimSpace(raw) {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	s := digits.String()
	if s == "" {
		return InvoiceSplit{}
	}

	var pos, seq string
	if len(s) <= 8 {
		pos = "1"
		seq = zfill(s, 8)
	} else {
		pos = s[:len(s)-8]
		seq = s[len(s)-8:]
	}
	pos = strings.TrimLeft(pos, "0")
	if pos == "" {
		pos = "1"
	}

	padded := zfill(pos, 4)
	return InvoiceSplit{
		PointOfSale: pos,
		Sequence:    seq,
		Formatted:   padded + "-" + seq,
	}
}

func zfill(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
