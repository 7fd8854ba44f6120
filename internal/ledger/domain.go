package ledger

import "time"

// Partner categories as stored in the socios table.
const (
	CategoryPartner = "Socio"
	CategoryCompany = "Empresa"
)

// Payment states carried over from the import sheets. Free text beyond
// these two values is stored as-is.
const (
	StatusPaid    = "PAGADO"
	StatusOverdue = "ADEUDADO"
)

// Partner is a person or company that purchases and sales are attributed to.
type Partner struct {
	ID       int64  `json:"id"`
	Name     string `json:"nombre"`
	Category string `json:"tipo"`
	// MarginPct is backfilled lazily from the category default and never
	// overwritten once set.
	MarginPct *float64 `json:"margen_pct"`
}

// IsPartnerCategory reports whether the partner shares in the socio margin.
func (p Partner) IsPartnerCategory() bool {
	return p.Category == CategoryPartner
}

// Purchase is one imported purchase invoice row.
type Purchase struct {
	ID           int64     `json:"id"`
	Date         time.Time `json:"fecha"`
	YM           string    `json:"ym"`
	Supplier     string    `json:"proveedor"`
	PartnerID    int64     `json:"socio_id"` // 0 when unattributed
	NetAmount    float64   `json:"neto"`
	VAT21        float64   `json:"iva_21"`
	VAT105       float64   `json:"iva_105"`
	TotalWithVAT float64   `json:"total_con_iva"`
	InvoiceType  string    `json:"tipo_factura"`
	InvoiceNum   string    `json:"numero_factura"`
	TaxID        string    `json:"cuit"`
	OriginBox    string    `json:"origen"`
	Status       string    `json:"estado"`
	Description  string    `json:"detalle"`
	Personal     bool      `json:"personal"`
	// DeductiblePct is the row-level creditable-VAT override from the
	// sheet; nil means the category default applies.
	DeductiblePct *float64 `json:"iva_deducible_pct"`
	TransactionID string   `json:"transaccion_id"`
}

// PersonalPurchase is the reduced personal-expense row some sheets carry:
// VAT components only, no net amount or total.
type PersonalPurchase struct {
	ID          int64     `json:"id"`
	Date        time.Time `json:"fecha"`
	YM          string    `json:"ym"`
	Supplier    string    `json:"proveedor"`
	PartnerID   int64     `json:"socio_id"`
	VAT21       float64   `json:"iva_21"`
	VAT105      float64   `json:"iva_105"`
	Description string    `json:"detalle"`
}

// Sale is one imported sale invoice row.
type Sale struct {
	ID             int64     `json:"id"`
	Date           time.Time `json:"fecha"`
	YM             string    `json:"ym"`
	Customer       string    `json:"cliente"`
	PartnerID      int64     `json:"socio_id"`
	NetAmount      float64   `json:"neto"`
	VAT21          float64   `json:"iva_21"`
	VAT105         float64   `json:"iva_105"`
	TotalWithVAT   float64   `json:"total_con_iva"`
	InvoiceType    string    `json:"tipo_factura"`
	InvoiceNum     string    `json:"numero_factura"`
	TaxID          string    `json:"cuit_venta"`
	DestinationBox string    `json:"destino"`
	Status         string    `json:"estado"`
	Description    string    `json:"detalle"`
	TransactionID  string    `json:"transaccion_id"`
}

// VATTotal returns the combined VAT components of a purchase.
func (p Purchase) VATTotal() float64 {
	return p.VAT21 + p.VAT105
}

// Total returns the stored total when non-zero, else reconstructs it from
// the components. A recorded zero total is never trusted at face value.
func (p Purchase) Total() float64 {
	return totalWithFallback(p.TotalWithVAT, p.NetAmount, p.VAT21, p.VAT105)
}

// VATTotal returns the combined VAT components of a sale.
func (s Sale) VATTotal() float64 {
	return s.VAT21 + s.VAT105
}

// Total returns the stored total when non-zero, else reconstructs it from
// the components.
func (s Sale) Total() float64 {
	return totalWithFallback(s.TotalWithVAT, s.NetAmount, s.VAT21, s.VAT105)
}

func totalWithFallback(stored, net, vat21, vat105 float64) float64 {
	if stored != 0 {
		return stored
	}
	return net + vat21 + vat105
}
