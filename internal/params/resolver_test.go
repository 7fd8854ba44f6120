package params

import (
	"context"
	"errors"
	"testing"

	"github.com/oevi/oevi/internal/shared"
)

type memoryStore struct {
	values  map[string]float64
	ensures int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: make(map[string]float64)}
}

func (s *memoryStore) Get(ctx context.Context, key string) (float64, error) {
	v, ok := s.values[key]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return v, nil
}

func (s *memoryStore) Ensure(ctx context.Context, key string, value float64) (float64, error) {
	s.ensures++
	if existing, ok := s.values[key]; ok {
		return existing, nil
	}
	s.values[key] = value
	return value, nil
}

func (s *memoryStore) Put(ctx context.Context, key string, value float64) error {
	s.values[key] = value
	return nil
}

func TestGetMissingReturnsMissingParameterError(t *testing.T) {
	r := NewResolver(newMemoryStore())
	_, err := r.Get(context.Background(), KeyCompanyMargin)
	var missing *MissingParameterError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingParameterError, got %v", err)
	}
}

func TestGetOrDefaultCreatesOnFirstRead(t *testing.T) {
	store := newMemoryStore()
	r := NewResolver(store)
	ctx := context.Background()

	v, err := r.GetOrDefault(ctx, KeyVendorMargin, DefaultVendorMargin)
	if err != nil {
		t.Fatalf("GetOrDefault() error = %v", err)
	}
	if v != DefaultVendorMargin {
		t.Fatalf("expected default %v, got %v", DefaultVendorMargin, v)
	}
	if store.values[KeyVendorMargin] != DefaultVendorMargin {
		t.Fatal("expected parameter to be persisted")
	}

	// Second read must not re-provision.
	if _, err := r.GetOrDefault(ctx, KeyVendorMargin, 0.99); err != nil {
		t.Fatalf("GetOrDefault() error = %v", err)
	}
	if store.values[KeyVendorMargin] != DefaultVendorMargin {
		t.Fatal("stored value overwritten by later default")
	}
}

func TestGetOrDefaultDoesNotOverrideStored(t *testing.T) {
	store := newMemoryStore()
	store.values[KeyPartnerMargin] = 0.12
	r := NewResolver(store)

	v, err := r.GetOrDefault(context.Background(), KeyPartnerMargin, DefaultPartnerMargin)
	if err != nil {
		t.Fatalf("GetOrDefault() error = %v", err)
	}
	if v != 0.12 {
		t.Fatalf("expected stored value 0.12, got %v", v)
	}
	if store.ensures != 0 {
		t.Fatal("Ensure should not run for stored parameters")
	}
}

func TestGetAnyProbesLegacySpellings(t *testing.T) {
	store := newMemoryStore()
	store.values["margen_empresa"] = 0.5
	r := NewResolver(store)

	v, err := r.GetAny(context.Background(), []string{KeyCompanyMargin, "margen_empresa"}, DefaultCompanyMargin)
	if err != nil {
		t.Fatalf("GetAny() error = %v", err)
	}
	if v != 0.5 {
		t.Fatalf("expected legacy value 0.5, got %v", v)
	}
	if _, ok := store.values[KeyCompanyMargin]; ok {
		t.Fatal("GetAny must not create the first key when a legacy key exists")
	}
}

func TestGetAnyCreatesFirstKeyWhenNoneExist(t *testing.T) {
	store := newMemoryStore()
	r := NewResolver(store)

	v, err := r.GetAny(context.Background(), []string{KeyCompanyMargin, "margen_empresa"}, DefaultCompanyMargin)
	if err != nil {
		t.Fatalf("GetAny() error = %v", err)
	}
	if v != DefaultCompanyMargin {
		t.Fatalf("expected default, got %v", v)
	}
	if store.values[KeyCompanyMargin] != DefaultCompanyMargin {
		t.Fatal("expected first key to be provisioned")
	}
}

func TestGetAnyRequiresKeys(t *testing.T) {
	r := NewResolver(newMemoryStore())
	if _, err := r.GetAny(context.Background(), nil, 1); err == nil {
		t.Fatal("expected error for empty key list")
	}
}
