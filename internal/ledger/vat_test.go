package ledger

import "testing"

func ptr(v float64) *float64 { return &v }

func TestDeductibleShareResolution(t *testing.T) {
	tests := []struct {
		name     string
		purchase Purchase
		want     float64
	}{
		{"row override wins", Purchase{Personal: true, DeductiblePct: ptr(0.8)}, 0.8},
		{"personal default", Purchase{Personal: true}, 0.5},
		{"normal default", Purchase{}, 1.0},
		{"override clamped high", Purchase{DeductiblePct: ptr(1.7)}, 1.0},
		{"override clamped low", Purchase{DeductiblePct: ptr(-0.3)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeductibleShare(tt.purchase, 1.0, 0.5)
			if got != tt.want {
				t.Fatalf("DeductibleShare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeductibleAndNonDeductibleSplitVAT(t *testing.T) {
	p := Purchase{VAT21: 21, VAT105: 10.5, DeductiblePct: ptr(0.6)}
	deductible := DeductibleVAT(p, 1.0, 0.5)
	rest := NonDeductibleVAT(p, 1.0, 0.5)
	if got := deductible + rest; got != p.VATTotal() {
		t.Fatalf("split does not cover the full VAT: %v + %v != %v", deductible, rest, p.VATTotal())
	}
	if deductible != 18.9 {
		t.Fatalf("DeductibleVAT() = %v, want 18.9", deductible)
	}
}

func TestAccumulateCreditableTracksPersonalSubset(t *testing.T) {
	purchases := []Purchase{
		{VAT21: 100},                                          // normal, fully creditable
		{VAT21: 40, Personal: true},                           // personal, half by default
		{VAT21: 60, Personal: true, DeductiblePct: ptr(0.25)}, // personal with override
	}
	got := AccumulateCreditable(purchases, 1.0, 0.5)

	if got.VATTotal != 200 {
		t.Fatalf("VATTotal = %v, want 200", got.VATTotal)
	}
	if got.Creditable != 135 {
		t.Fatalf("Creditable = %v, want 135", got.Creditable)
	}
	if got.PersonalVATTotal != 100 {
		t.Fatalf("PersonalVATTotal = %v, want 100", got.PersonalVATTotal)
	}
	if got.PersonalCreditable != 35 {
		t.Fatalf("PersonalCreditable = %v, want 35", got.PersonalCreditable)
	}
}

func TestTotalFallsBackToComponents(t *testing.T) {
	s := Sale{NetAmount: 100, VAT21: 21, VAT105: 0}
	if got := s.Total(); got != 121 {
		t.Fatalf("Total() = %v, want 121", got)
	}
	s.TotalWithVAT = 130 // stored total wins even when inconsistent
	if got := s.Total(); got != 130 {
		t.Fatalf("Total() = %v, want stored 130", got)
	}

	p := Purchase{NetAmount: 50, VAT105: 5.25}
	if got := p.Total(); got != 55.25 {
		t.Fatalf("Total() = %v, want 55.25", got)
	}
}
