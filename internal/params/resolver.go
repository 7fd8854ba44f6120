package params

import (
	"context"
	"errors"
	"fmt"

	"github.com/oevi/oevi/internal/shared"
)

// Well-known parameter keys. The spellings are load-bearing: imported
// sheets and the existing database both use them.
const (
	KeyCompanyMargin         = "margen_Empresa"
	KeyVendorMargin          = "margen_Vendedor"
	KeyPartnerMargin         = "margen_Socio"
	KeyNormalDeductiblePct   = "iva_deducible_normal_pct"
	KeyPersonalDeductiblePct = "iva_deducible_personal_default_pct"
	KeyPartnerRequired       = "nombre_socio_obligatorio"
)

// Factory defaults provisioned on first read.
const (
	DefaultCompanyMargin         = 0.53
	DefaultVendorMargin          = 0.20
	DefaultPartnerMargin         = 0.09
	DefaultNormalDeductiblePct   = 1.0
	DefaultPersonalDeductiblePct = 0.5
)

// MissingParameterError reports a required parameter that has no stored
// value and no default. It signals a deployment problem, not user input.
type MissingParameterError struct {
	Keys []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("params: no value for %v and no default provided", e.Keys)
}

// Store persists named numeric parameters.
type Store interface {
	// Get returns the stored value or shared.ErrNotFound.
	Get(ctx context.Context, key string) (float64, error)
	// Ensure creates the parameter when absent and returns the stored
	// value either way. It must be safe under concurrent first reads.
	Ensure(ctx context.Context, key string, value float64) (float64, error)
	// Put stores a value unconditionally.
	Put(ctx context.Context, key string, value float64) error
}

// Resolver is the single gate for configuration percentages. Every margin
// and VAT rate flows through it so default provisioning stays in one place.
type Resolver struct {
	store Store
}

// NewResolver constructs a resolver over a parameter store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Get returns the value of a parameter that must already exist.
func (r *Resolver) Get(ctx context.Context, key string) (float64, error) {
	value, err := r.store.Get(ctx, key)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, &MissingParameterError{Keys: []string{key}}
	}
	if err != nil {
		return 0, fmt.Errorf("params: get %s: %w", key, err)
	}
	return value, nil
}

// GetOrDefault returns the stored value, creating the parameter with the
// supplied default on first read.
func (r *Resolver) GetOrDefault(ctx context.Context, key string, def float64) (float64, error) {
	value, err := r.store.Get(ctx, key)
	if errors.Is(err, shared.ErrNotFound) {
		return r.store.Ensure(ctx, key, def)
	}
	if err != nil {
		return 0, fmt.Errorf("params: get %s: %w", key, err)
	}
	return value, nil
}

// GetAny probes several legacy key spellings in order and returns the first
// stored value. When none exists the first key is created with the default.
func (r *Resolver) GetAny(ctx context.Context, keys []string, def float64) (float64, error) {
	if len(keys) == 0 {
		return 0, errors.New("params: GetAny requires at least one key")
	}
	for _, key := range keys {
		value, err := r.store.Get(ctx, key)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("params: get %s: %w", key, err)
		}
		return value, nil
	}
	return r.store.Ensure(ctx, keys[0], def)
}

// Set stores a parameter value.
func (r *Resolver) Set(ctx context.Context, key string, value float64) error {
	if err := r.store.Put(ctx, key, value); err != nil {
		return fmt.Errorf("params: put %s: %w", key, err)
	}
	return nil
}
