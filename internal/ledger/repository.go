package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oevi/oevi/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Partner operations ---

// ListPartners returns all partners ordered by name.
func (r *Repository) ListPartners(ctx context.Context) ([]Partner, error) {
	const query = `
		SELECT id, nombre, tipo, margen_pct
		FROM socios
		ORDER BY nombre`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []Partner
	for rows.Next() {
		var p Partner
		var margin pgtype.Float8
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &margin); err != nil {
			return nil, err
		}
		if margin.Valid {
			p.MarginPct = &margin.Float64
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

// GetPartnerByName retrieves one partner by exact name.
func (r *Repository) GetPartnerByName(ctx context.Context, name string) (*Partner, error) {
	const query = `SELECT id, nombre, tipo, margen_pct FROM socios WHERE nombre = $1`

	var p Partner
	var margin pgtype.Float8
	err := r.pool.QueryRow(ctx, query, name).Scan(&p.ID, &p.Name, &p.Category, &margin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if margin.Valid {
		p.MarginPct = &margin.Float64
	}
	return &p, nil
}

// EnsurePartner creates the partner when absent and returns the stored row.
// The category of an existing partner is never changed here.
func (r *Repository) EnsurePartner(ctx context.Context, name, category string) (*Partner, error) {
	const insert = `
		INSERT INTO socios (nombre, tipo)
		VALUES ($1, $2)
		ON CONFLICT (nombre) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert, name, category); err != nil {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return nil, err
		}
	}
	return r.GetPartnerByName(ctx, name)
}

// UpdatePartner stores name, category and margin for an existing partner.
func (r *Repository) UpdatePartner(ctx context.Context, p Partner) error {
	const query = `
		UPDATE socios
		SET nombre = $2, tipo = $3, margen_pct = $4
		WHERE id = $1`

	var margin pgtype.Float8
	if p.MarginPct != nil {
		margin = pgtype.Float8{Float64: *p.MarginPct, Valid: true}
	}
	result, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.Category, margin)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// BackfillPartnerMargins fills missing margen_pct values from the category
// defaults. Existing values stay untouched.
func (r *Repository) BackfillPartnerMargins(ctx context.Context, partnerPct, companyPct float64) (int64, error) {
	const query = `
		UPDATE socios
		SET margen_pct = CASE WHEN tipo = 'Socio' THEN $1::float8 ELSE $2::float8 END
		WHERE margen_pct IS NULL`
	result, err := r.pool.Exec(ctx, query, partnerPct, companyPct)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// --- Record filters ---

// RecordFilter narrows period listings. Zero values mean no constraint.
type RecordFilter struct {
	Period    shared.Period
	PartnerID int64
	Status    string
	Box       string
}

func (f RecordFilter) periodClause(args *[]any) string {
	switch f.Period.Kind {
	case shared.PeriodAll:
		return ""
	case shared.PeriodExact:
		*args = append(*args, f.Period.String())
		return fmt.Sprintf(" AND ym = $%d", len(*args))
	case shared.PeriodYear:
		*args = append(*args, fmt.Sprintf("%04d-%%", f.Period.Year))
		return fmt.Sprintf(" AND ym LIKE $%d", len(*args))
	default:
		// No period selected means no rows.
		return " AND FALSE"
	}
}

// --- Purchase operations ---

const purchaseColumns = `
	id, fecha, ym, proveedor, socio_id, neto, iva_21, iva_105,
	total_con_iva, tipo_factura, numero_factura, cuit,
	caja_origen, estado, descripcion, es_personal, iva_deducible_pct,
	transaccion_id`

// PurchasesByPeriod returns purchases matching the filter, newest first.
func (r *Repository) PurchasesByPeriod(ctx context.Context, f RecordFilter) ([]Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM compras WHERE 1=1`
	var args []any
	query += f.periodClause(&args)
	if f.PartnerID > 0 {
		args = append(args, f.PartnerID)
		query += fmt.Sprintf(" AND socio_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND estado = $%d", len(args))
	}
	if f.Box != "" {
		args = append(args, f.Box)
		query += fmt.Sprintf(" AND caja_origen = $%d", len(args))
	}
	query += " ORDER BY fecha DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var socioID pgtype.Int8
	var deductible pgtype.Float8
	var invoiceType, invoiceNum, taxID, box, status, desc, txID pgtype.Text

	err := row.Scan(
		&p.ID, &p.Date, &p.YM, &p.Supplier, &socioID, &p.NetAmount, &p.VAT21, &p.VAT105,
		&p.TotalWithVAT, &invoiceType, &invoiceNum, &taxID,
		&box, &status, &desc, &p.Personal, &deductible,
		&txID,
	)
	if err != nil {
		return Purchase{}, err
	}
	p.PartnerID = socioID.Int64
	if deductible.Valid {
		p.DeductiblePct = &deductible.Float64
	}
	p.InvoiceType = invoiceType.String
	p.InvoiceNum = invoiceNum.String
	p.TaxID = taxID.String
	p.OriginBox = box.String
	p.Status = status.String
	p.Description = desc.String
	p.TransactionID = txID.String
	return p, nil
}

// InsertPurchase stores one purchase row and returns its id.
func (r *Repository) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	return insertPurchase(ctx, r.pool, p)
}

func insertPurchase(ctx context.Context, q querier, p Purchase) (int64, error) {
	const query = `
		INSERT INTO compras (
			fecha, ym, proveedor, socio_id, neto, iva_21, iva_105,
			total_con_iva, tipo_factura, numero_factura, cuit,
			caja_origen, estado, descripcion, es_personal, iva_deducible_pct,
			transaccion_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`

	var socioID pgtype.Int8
	if p.PartnerID > 0 {
		socioID = pgtype.Int8{Int64: p.PartnerID, Valid: true}
	}
	var deductible pgtype.Float8
	if p.DeductiblePct != nil {
		deductible = pgtype.Float8{Float64: *p.DeductiblePct, Valid: true}
	}

	var id int64
	err := q.QueryRow(ctx, query,
		p.Date, p.YM, p.Supplier, socioID, p.NetAmount, p.VAT21, p.VAT105,
		p.TotalWithVAT, p.InvoiceType, p.InvoiceNum, p.TaxID,
		p.OriginBox, p.Status, p.Description, p.Personal, deductible,
		p.TransactionID,
	).Scan(&id)
	return id, err
}

// --- Sale operations ---

const saleColumns = `
	id, fecha, ym, cliente, socio_id, neto, iva_21, iva_105,
	total_con_iva, tipo_factura, numero_factura, cuit,
	caja_destino, estado, descripcion, transaccion_id`

// SalesByPeriod returns sales matching the filter, newest first.
func (r *Repository) SalesByPeriod(ctx context.Context, f RecordFilter) ([]Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM ventas WHERE 1=1`
	var args []any
	query += f.periodClause(&args)
	if f.PartnerID > 0 {
		args = append(args, f.PartnerID)
		query += fmt.Sprintf(" AND socio_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND estado = $%d", len(args))
	}
	if f.Box != "" {
		args = append(args, f.Box)
		query += fmt.Sprintf(" AND caja_destino = $%d", len(args))
	}
	query += " ORDER BY fecha DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var socioID pgtype.Int8
	var invoiceType, invoiceNum, taxID, box, status, desc, txID pgtype.Text

	err := row.Scan(
		&s.ID, &s.Date, &s.YM, &s.Customer, &socioID, &s.NetAmount, &s.VAT21, &s.VAT105,
		&s.TotalWithVAT, &invoiceType, &invoiceNum, &taxID,
		&box, &status, &desc, &txID,
	)
	if err != nil {
		return Sale{}, err
	}
	s.PartnerID = socioID.Int64
	s.InvoiceType = invoiceType.String
	s.InvoiceNum = invoiceNum.String
	s.TaxID = taxID.String
	s.DestinationBox = box.String
	s.Status = status.String
	s.Description = desc.String
	s.TransactionID = txID.String
	return s, nil
}

// InsertSale stores one sale row and returns its id.
func (r *Repository) InsertSale(ctx context.Context, s Sale) (int64, error) {
	return insertSale(ctx, r.pool, s)
}

func insertSale(ctx context.Context, q querier, s Sale) (int64, error) {
	const query = `
		INSERT INTO ventas (
			fecha, ym, cliente, socio_id, neto, iva_21, iva_105,
			total_con_iva, tipo_factura, numero_factura, cuit,
			caja_destino, estado, descripcion, transaccion_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	var socioID pgtype.Int8
	if s.PartnerID > 0 {
		socioID = pgtype.Int8{Int64: s.PartnerID, Valid: true}
	}

	var id int64
	err := q.QueryRow(ctx, query,
		s.Date, s.YM, s.Customer, socioID, s.NetAmount, s.VAT21, s.VAT105,
		s.TotalWithVAT, s.InvoiceType, s.InvoiceNum, s.TaxID,
		s.DestinationBox, s.Status, s.Description, s.TransactionID,
	).Scan(&id)
	return id, err
}

// --- Personal purchases ---

// PersonalPurchasesByPeriod returns the reduced personal-expense rows.
func (r *Repository) PersonalPurchasesByPeriod(ctx context.Context, f RecordFilter) ([]PersonalPurchase, error) {
	query := `
		SELECT id, fecha, ym, proveedor, socio_id, iva_21, iva_105, descripcion
		FROM compras_personales WHERE 1=1`
	var args []any
	query += f.periodClause(&args)
	if f.PartnerID > 0 {
		args = append(args, f.PartnerID)
		query += fmt.Sprintf(" AND socio_id = $%d", len(args))
	}
	query += " ORDER BY fecha DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []PersonalPurchase
	for rows.Next() {
		var p PersonalPurchase
		var socioID pgtype.Int8
		var desc pgtype.Text
		if err := rows.Scan(&p.ID, &p.Date, &p.YM, &p.Supplier, &socioID, &p.VAT21, &p.VAT105, &desc); err != nil {
			return nil, err
		}
		p.PartnerID = socioID.Int64
		p.Description = desc.String
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func insertPersonalPurchase(ctx context.Context, q querier, p PersonalPurchase) (int64, error) {
	const query = `
		INSERT INTO compras_personales (fecha, ym, proveedor, socio_id, iva_21, iva_105, descripcion)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	var socioID pgtype.Int8
	if p.PartnerID > 0 {
		socioID = pgtype.Int8{Int64: p.PartnerID, Valid: true}
	}
	var id int64
	err := q.QueryRow(ctx, query, p.Date, p.YM, p.Supplier, socioID, p.VAT21, p.VAT105, p.Description).Scan(&id)
	return id, err
}

// --- Period reload ---

// ReplaceBatch is one period reload: the months to clear per table and the
// replacement rows.
type ReplaceBatch struct {
	PurchasePeriods []string
	SalePeriods     []string
	PersonalPeriods []string
	Purchases       []Purchase
	Sales           []Sale
	Personal        []PersonalPurchase
}

// ReplacePeriods deletes every row in the batch's months, table by table,
// and inserts the replacement rows in one transaction, so a re-imported
// sheet never duplicates rows. It returns how many purchases and sales were
// cleared.
func (r *Repository) ReplacePeriods(ctx context.Context, batch ReplaceBatch) (deletedPurchases, deletedSales int64, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	if len(batch.PurchasePeriods) > 0 {
		tag, err := tx.Exec(ctx, `DELETE FROM compras WHERE ym = ANY($1)`, batch.PurchasePeriods)
		if err != nil {
			return 0, 0, fmt.Errorf("ledger: clear compras: %w", err)
		}
		deletedPurchases = tag.RowsAffected()
	}
	if len(batch.SalePeriods) > 0 {
		tag, err := tx.Exec(ctx, `DELETE FROM ventas WHERE ym = ANY($1)`, batch.SalePeriods)
		if err != nil {
			return 0, 0, fmt.Errorf("ledger: clear ventas: %w", err)
		}
		deletedSales = tag.RowsAffected()
	}
	if len(batch.PersonalPeriods) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM compras_personales WHERE ym = ANY($1)`, batch.PersonalPeriods); err != nil {
			return 0, 0, fmt.Errorf("ledger: clear compras_personales: %w", err)
		}
	}
	for _, p := range batch.Purchases {
		if _, err := insertPurchase(ctx, tx, p); err != nil {
			return 0, 0, fmt.Errorf("ledger: insert purchase: %w", err)
		}
	}
	for _, s := range batch.Sales {
		if _, err := insertSale(ctx, tx, s); err != nil {
			return 0, 0, fmt.Errorf("ledger: insert sale: %w", err)
		}
	}
	for _, p := range batch.Personal {
		if _, err := insertPersonalPurchase(ctx, tx, p); err != nil {
			return 0, 0, fmt.Errorf("ledger: insert personal purchase: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return deletedPurchases, deletedSales, nil
}

// CountOverdue returns how many purchases and sales are still unpaid within
// the filter's period.
func (r *Repository) CountOverdue(ctx context.Context, f RecordFilter) (purchases, sales int, err error) {
	var args []any
	clause := f.periodClause(&args)

	query := `SELECT COUNT(*) FROM compras WHERE estado = '` + StatusOverdue + `'` + clause
	if err = r.pool.QueryRow(ctx, query, args...).Scan(&purchases); err != nil {
		return 0, 0, err
	}
	query = `SELECT COUNT(*) FROM ventas WHERE estado = '` + StatusOverdue + `'` + clause
	if err = r.pool.QueryRow(ctx, query, args...).Scan(&sales); err != nil {
		return 0, 0, err
	}
	return purchases, sales, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
