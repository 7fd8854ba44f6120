package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/oevi/oevi/internal/ledger"
	"github.com/oevi/oevi/internal/params"
	"github.com/oevi/oevi/internal/shared"
)

// Sheet names expected in an upload.
const (
	SheetParameters = "Parametros"
	SheetPartners   = "Socios"
	SheetPurchases  = "FactCompras"
	SheetSales      = "FactVentas"
	SheetPersonal   = "ComprasPersonales"
)

// SheetSet carries the CSV content of each sheet. Nil readers mean the
// sheet is absent from the upload; spreadsheet extraction happens upstream.
type SheetSet struct {
	Parameters io.Reader
	Partners   io.Reader
	Purchases  io.Reader
	Sales      io.Reader
	Personal   io.Reader
}

// Reject is one row the import refused, kept for the operator to review.
type Reject struct {
	Sheet        string
	Reason       string
	InvoiceNum   string
	Date         string
	Counterparty string
}

// Result summarises one import run.
type Result struct {
	DeletedPurchases  int64  `json:"deleted_c"`
	DeletedSales      int64  `json:"deleted_v"`
	ImportedPurchases int    `json:"compras"`
	ImportedSales     int    `json:"ventas"`
	ImportedPersonal  int    `json:"compras_personales"`
	Rejects           int    `json:"rechazos"`
	RejectsPath       string `json:"rechazos_path,omitempty"`
}

// Store is the persistence contract the importer writes through.
type Store interface {
	GetPartnerByName(ctx context.Context, name string) (*ledger.Partner, error)
	EnsurePartner(ctx context.Context, name, category string) (*ledger.Partner, error)
	UpdatePartner(ctx context.Context, p ledger.Partner) error
	BackfillPartnerMargins(ctx context.Context, partnerPct, companyPct float64) (int64, error)
	ReplacePeriods(ctx context.Context, batch ledger.ReplaceBatch) (deletedPurchases, deletedSales int64, err error)
}

// Invalidator drops caches derived from the record tables.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service turns uploaded sheets into ledger rows.
type Service struct {
	logger    *slog.Logger
	store     Store
	params    *params.Resolver
	caches    Invalidator
	uploadDir string
}

// NewService constructs the import service. caches may be nil.
func NewService(logger *slog.Logger, store Store, resolver *params.Resolver, caches Invalidator, uploadDir string) *Service {
	return &Service{logger: logger, store: store, params: resolver, caches: caches, uploadDir: uploadDir}
}

// Run imports a sheet set: parameters and partners are upserted, then every
// period present in the purchase/sale sheets is wiped and reloaded so a
// re-upload never duplicates rows. Rejected rows end up in a CSV under the
// upload directory.
func (s *Service) Run(ctx context.Context, sheets SheetSet) (Result, error) {
	var result Result
	var rejects []Reject

	if err := s.importParameters(ctx, sheets.Parameters); err != nil {
		return result, err
	}
	if err := s.importPartners(ctx, sheets.Partners); err != nil {
		return result, err
	}

	requiredRaw, err := s.params.GetOrDefault(ctx, params.KeyPartnerRequired, 1)
	if err != nil {
		return result, err
	}
	partnerRequired := requiredRaw != 0

	batch := ledger.ReplaceBatch{}

	purchaseRows, err := readSheet(sheets.Purchases)
	if err != nil {
		return result, fmt.Errorf("importer: read %s: %w", SheetPurchases, err)
	}
	for _, row := range purchaseRows {
		p, reject := s.parsePurchase(ctx, row, partnerRequired)
		if reject != nil {
			rejects = append(rejects, *reject)
			continue
		}
		if p == nil {
			continue // blank date rows are silently skipped
		}
		batch.Purchases = append(batch.Purchases, *p)
	}

	saleRows, err := readSheet(sheets.Sales)
	if err != nil {
		return result, fmt.Errorf("importer: read %s: %w", SheetSales, err)
	}
	for _, row := range saleRows {
		v, reject := s.parseSale(ctx, row, partnerRequired)
		if reject != nil {
			rejects = append(rejects, *reject)
			continue
		}
		if v == nil {
			continue
		}
		batch.Sales = append(batch.Sales, *v)
	}

	personalRows, err := readSheet(sheets.Personal)
	if err != nil {
		return result, fmt.Errorf("importer: read %s: %w", SheetPersonal, err)
	}
	for _, row := range personalRows {
		p, reject := s.parsePersonal(ctx, row)
		if reject != nil {
			rejects = append(rejects, *reject)
			continue
		}
		if p == nil {
			continue
		}
		batch.Personal = append(batch.Personal, *p)
	}

	batch.PurchasePeriods = collectPeriods(batch.Purchases, func(p ledger.Purchase) string { return p.YM })
	batch.SalePeriods = collectPeriods(batch.Sales, func(v ledger.Sale) string { return v.YM })
	batch.PersonalPeriods = collectPeriods(batch.Personal, func(p ledger.PersonalPurchase) string { return p.YM })

	result.DeletedPurchases, result.DeletedSales, err = s.store.ReplacePeriods(ctx, batch)
	if err != nil {
		return result, err
	}
	result.ImportedPurchases = len(batch.Purchases)
	result.ImportedSales = len(batch.Sales)
	result.ImportedPersonal = len(batch.Personal)

	if err := s.backfillMargins(ctx); err != nil {
		return result, err
	}

	result.Rejects = len(rejects)
	if len(rejects) > 0 {
		path, err := s.writeRejects(rejects)
		if err != nil {
			return result, err
		}
		result.RejectsPath = path
	}

	if s.caches != nil {
		if err := s.caches.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate caches after import", slog.Any("error", err))
		}
	}
	return result, nil
}

func (s *Service) importParameters(ctx context.Context, r io.Reader) error {
	rows, err := readSheet(r)
	if err != nil {
		return fmt.Errorf("importer: read %s: %w", SheetParameters, err)
	}
	for _, row := range rows {
		key := strings.TrimSpace(row["Parametro"])
		if key == "" {
			continue
		}
		if strings.TrimSpace(row["Valor"]) == "" {
			continue
		}
		value := ParseAmount(row["Valor"])
		if err := s.params.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) importPartners(ctx context.Context, r io.Reader) error {
	rows, err := readSheet(r)
	if err != nil {
		return fmt.Errorf("importer: read %s: %w", SheetPartners, err)
	}
	for _, row := range rows {
		name := strings.TrimSpace(row["nombre_socio"])
		if name == "" {
			continue
		}
		category := strings.TrimSpace(row["tipo_socio"])
		if category == "" {
			category = ledger.CategoryPartner
		}
		partner, err := s.store.EnsurePartner(ctx, name, category)
		if err != nil {
			return err
		}
		if partner.Category != category {
			partner.Category = category
			if err := s.store.UpdatePartner(ctx, *partner); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) resolvePartnerID(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, nil
	}
	partner, err := s.store.GetPartnerByName(ctx, name)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return partner.ID, nil
}

func (s *Service) parsePurchase(ctx context.Context, row map[string]string, partnerRequired bool) (*ledger.Purchase, *Reject) {
	rawDate := strings.TrimSpace(row["FECHA"])
	if rawDate == "" {
		return nil, nil
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, &Reject{Sheet: SheetPurchases, Reason: err.Error(), InvoiceNum: row["NRO_FACTURA"], Date: rawDate, Counterparty: row["PROVEEDOR"]}
	}

	partnerID, err := s.resolvePartnerID(ctx, row["nombre_socio"])
	if err != nil {
		return nil, &Reject{Sheet: SheetPurchases, Reason: err.Error(), InvoiceNum: row["NRO_FACTURA"], Date: rawDate, Counterparty: row["PROVEEDOR"]}
	}
	if partnerRequired && partnerID == 0 {
		return nil, &Reject{
			Sheet:        SheetPurchases,
			Reason:       "nombre_socio invalido/ausente",
			InvoiceNum:   row["NRO_FACTURA"],
			Date:         date.Format("2006-01-02"),
			Counterparty: row["PROVEEDOR"],
		}
	}

	p := ledger.Purchase{
		Date:          date,
		YM:            shared.PeriodKey(date),
		Supplier:      strings.TrimSpace(row["PROVEEDOR"]),
		PartnerID:     partnerID,
		NetAmount:     ParseAmount(row["PESOS_SIN_IVA"]),
		VAT21:         ParseAmount(row["IVA_21"]),
		VAT105:        ParseAmount(row["IVA_105"]),
		TotalWithVAT:  ParseAmount(row["TOTAL_CON_IVA"]),
		InvoiceType:   strings.ToUpper(strings.TrimSpace(row["TIPO"])),
		InvoiceNum:    strings.TrimSpace(row["NRO_FACTURA"]),
		TaxID:         strings.TrimSpace(row["CUIT"]),
		OriginBox:     strings.TrimSpace(row["ORIGEN"]),
		Status:        statusOrPaid(row["ESTADO"]),
		Description:   strings.TrimSpace(row["DETALLE"]),
		Personal:      ParseYesNo(row["personal"]),
		TransactionID: strings.TrimSpace(row["transaccion_id"]),
	}
	if pct, ok := ParsePercent(row["iva_deducible_pct"]); ok {
		p.DeductiblePct = &pct
	}
	return &p, nil
}

func (s *Service) parseSale(ctx context.Context, row map[string]string, partnerRequired bool) (*ledger.Sale, *Reject) {
	rawDate := strings.TrimSpace(row["FECHA"])
	if rawDate == "" {
		return nil, nil
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, &Reject{Sheet: SheetSales, Reason: err.Error(), InvoiceNum: row["NRO_FACTURA"], Date: rawDate, Counterparty: row["CLIENTE"]}
	}

	partnerID, err := s.resolvePartnerID(ctx, row["nombre_socio"])
	if err != nil {
		return nil, &Reject{Sheet: SheetSales, Reason: err.Error(), InvoiceNum: row["NRO_FACTURA"], Date: rawDate, Counterparty: row["CLIENTE"]}
	}
	if partnerRequired && partnerID == 0 {
		return nil, &Reject{
			Sheet:        SheetSales,
			Reason:       "nombre_socio invalido/ausente",
			InvoiceNum:   row["NRO_FACTURA"],
			Date:         date.Format("2006-01-02"),
			Counterparty: row["CLIENTE"],
		}
	}

	v := ledger.Sale{
		Date:           date,
		YM:             shared.PeriodKey(date),
		Customer:       strings.TrimSpace(row["CLIENTE"]),
		PartnerID:      partnerID,
		NetAmount:      ParseAmount(row["PESOS_SIN_IVA"]),
		VAT21:          ParseAmount(row["IVA_21"]),
		VAT105:         ParseAmount(row["IVA_105"]),
		TotalWithVAT:   ParseAmount(row["TOTAL_CON_IVA"]),
		InvoiceType:    strings.ToUpper(strings.TrimSpace(row["TIPO"])),
		InvoiceNum:     strings.TrimSpace(row["NRO_FACTURA"]),
		TaxID:          strings.TrimSpace(row["CUIT_VENTA"]),
		DestinationBox: strings.TrimSpace(row["DESTINO"]),
		Status:         statusOrPaid(row["ESTADO"]),
		Description:    strings.TrimSpace(row["DETALLE"]),
		TransactionID:  strings.TrimSpace(row["transaccion_id"]),
	}
	return &v, nil
}

func (s *Service) parsePersonal(ctx context.Context, row map[string]string) (*ledger.PersonalPurchase, *Reject) {
	rawDate := strings.TrimSpace(row["FECHA"])
	if rawDate == "" {
		return nil, nil
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, &Reject{Sheet: SheetPersonal, Reason: err.Error(), Date: rawDate, Counterparty: row["PROVEEDOR"]}
	}
	partnerID, err := s.resolvePartnerID(ctx, row["nombre_socio"])
	if err != nil {
		return nil, &Reject{Sheet: SheetPersonal, Reason: err.Error(), Date: rawDate, Counterparty: row["PROVEEDOR"]}
	}
	return &ledger.PersonalPurchase{
		Date:        date,
		YM:          shared.PeriodKey(date),
		Supplier:    strings.TrimSpace(row["PROVEEDOR"]),
		PartnerID:   partnerID,
		VAT21:       ParseAmount(row["IVA_21"]),
		VAT105:      ParseAmount(row["IVA_105"]),
		Description: strings.TrimSpace(row["DETALLE"]),
	}, nil
}

// backfillMargins fills missing per-partner margins from the category
// defaults, leaving existing values alone.
func (s *Service) backfillMargins(ctx context.Context) error {
	companyPct, err := s.params.GetAny(ctx, []string{params.KeyCompanyMargin}, params.DefaultCompanyMargin)
	if err != nil {
		return err
	}
	partnerPct, err := s.params.GetAny(ctx, []string{params.KeyPartnerMargin}, params.DefaultPartnerMargin)
	if err != nil {
		return err
	}
	_, err = s.store.BackfillPartnerMargins(ctx, partnerPct, companyPct)
	return err
}

func (s *Service) writeRejects(rejects []Reject) (string, error) {
	name := fmt.Sprintf("rechazos_%s.csv", uuid.NewString())
	path := filepath.Join(s.uploadDir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("importer: create rejects file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"sheet", "motivo", "NRO_FACTURA", "FECHA", "contraparte"}); err != nil {
		return "", err
	}
	for _, r := range rejects {
		if err := writer.Write([]string{r.Sheet, r.Reason, r.InvoiceNum, r.Date, r.Counterparty}); err != nil {
			return "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, nil
}

// readSheet decodes a CSV sheet into one map per row, keyed by the header.
// A nil reader yields no rows.
func readSheet(r io.Reader) ([]map[string]string, error) {
	if r == nil {
		return nil, nil
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func statusOrPaid(raw string) string {
	status := strings.TrimSpace(raw)
	if status == "" {
		return ledger.StatusPaid
	}
	return status
}

func collectPeriods[T any](rows []T, ym func(T) string) []string {
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		seen[ym(row)] = struct{}{}
	}
	periods := make([]string, 0, len(seen))
	for p := range seen {
		periods = append(periods, p)
	}
	sort.Strings(periods)
	return periods
}
