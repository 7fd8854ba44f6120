package ledger

// DeductibleShare resolves the creditable fraction of a purchase's VAT.
// Row-level overrides win over the category default, and the result is
// clamped to [0, 1] so a stray sheet value can never invert a sign.
func DeductibleShare(p Purchase, normalDefault, personalDefault float64) float64 {
	var pct float64
	switch {
	case p.DeductiblePct != nil:
		pct = *p.DeductiblePct
	case p.Personal:
		pct = personalDefault
	default:
		pct = normalDefault
	}
	return clamp01(pct)
}

// DeductibleVAT returns the creditable portion of a purchase's VAT.
func DeductibleVAT(p Purchase, normalDefault, personalDefault float64) float64 {
	return p.VATTotal() * DeductibleShare(p, normalDefault, personalDefault)
}

// NonDeductibleVAT is the VAT portion that stays a real cost and therefore
// belongs in cash-box egress amounts.
func NonDeductibleVAT(p Purchase, normalDefault, personalDefault float64) float64 {
	return p.VATTotal() * (1 - DeductibleShare(p, normalDefault, personalDefault))
}

// CreditableTotals accumulates the fiscal-credit picture of a purchase set.
type CreditableTotals struct {
	VATTotal           float64
	Creditable         float64
	PersonalVATTotal   float64
	PersonalCreditable float64
}

// AccumulateCreditable sums creditable VAT over purchases, tracking the
// personal subset separately for the dashboard split.
func AccumulateCreditable(purchases []Purchase, normalDefault, personalDefault float64) CreditableTotals {
	var t CreditableTotals
	for _, p := range purchases {
		vat := p.VATTotal()
		credit := DeductibleVAT(p, normalDefault, personalDefault)
		t.VATTotal += vat
		t.Creditable += credit
		if p.Personal {
			t.PersonalVATTotal += vat
			t.PersonalCreditable += credit
		}
	}
	return t
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
