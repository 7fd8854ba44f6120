package params

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oevi/oevi/internal/shared"
)

// Repository provides PostgreSQL backed persistence for parameters.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the stored value for a key.
func (r *Repository) Get(ctx context.Context, key string) (float64, error) {
	const query = `SELECT valor FROM parametros WHERE clave = $1`
	var value float64
	err := r.pool.QueryRow(ctx, query, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Ensure inserts the default when the key is absent and reads back the
// stored value, so concurrent first reads converge on one row.
func (r *Repository) Ensure(ctx context.Context, key string, value float64) (float64, error) {
	const insert = `
		INSERT INTO parametros (clave, valor)
		VALUES ($1, $2)
		ON CONFLICT (clave) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert, key, value); err != nil {
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			return 0, err
		}
		// Constraint races fall through to the read-back below.
	}
	return r.Get(ctx, key)
}

// Put stores a value, overwriting any existing one.
func (r *Repository) Put(ctx context.Context, key string, value float64) error {
	const query = `
		INSERT INTO parametros (clave, valor)
		VALUES ($1, $2)
		ON CONFLICT (clave) DO UPDATE SET valor = EXCLUDED.valor`
	_, err := r.pool.Exec(ctx, query, key, value)
	return err
}
