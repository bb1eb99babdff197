package ledger

import "github.com/shopspring/decimal"

// RentTolerance is the largest difference between yearly rent and
// monthly × installments that still counts as consistent.
var RentTolerance = decimal.NewFromFloat(0.01)

// RentTerms holds the three cross-derived rent figures. A nil field is absent.
type RentTerms struct {
	MonthlyRent  *decimal.Decimal `json:"monthly_rent"`
	YearlyRent   *decimal.Decimal `json:"yearly_rent"`
	Installments *int             `json:"installments"`
}

// RentDerivation names which figure SyncRent changed.
type RentDerivation string

const (
	RentUnchanged          RentDerivation = "unchanged"
	RentDerivedYearly      RentDerivation = "derived_yearly"
	RentDerivedMonthly     RentDerivation = "derived_monthly"
	RentDerivedInstallment RentDerivation = "derived_installments"
	RentRecomputedYearly   RentDerivation = "recomputed_yearly"
)

// SyncRent keeps yearly = monthly × installments.
//
// With exactly two figures the third is derived. With all three present and
// inconsistent beyond RentTolerance, yearly is recomputed: monthly and
// installments are authoritative. With fewer than two nothing happens.
func SyncRent(in RentTerms) (RentTerms, RentDerivation) {
	out := RentTerms{
		MonthlyRent:  copyDecimal(in.MonthlyRent),
		YearlyRent:   copyDecimal(in.YearlyRent),
		Installments: copyInt(in.Installments),
	}

	hasMonthly := out.MonthlyRent != nil
	hasYearly := out.YearlyRent != nil
	hasInst := out.Installments != nil

	switch {
	case hasMonthly && hasInst && hasYearly:
		expected := yearlyOf(*out.MonthlyRent, *out.Installments)
		if out.YearlyRent.Sub(expected).Abs().GreaterThan(RentTolerance) {
			out.YearlyRent = &expected
			return out, RentRecomputedYearly
		}
		return out, RentUnchanged

	case hasMonthly && hasInst:
		yearly := yearlyOf(*out.MonthlyRent, *out.Installments)
		out.YearlyRent = &yearly
		return out, RentDerivedYearly

	case hasYearly && hasInst:
		if *out.Installments <= 0 {
			return out, RentUnchanged
		}
		monthly := out.YearlyRent.DivRound(decimal.NewFromInt(int64(*out.Installments)), 2)
		out.MonthlyRent = &monthly
		return out, RentDerivedMonthly

	case hasMonthly && hasYearly:
		if !out.MonthlyRent.IsPositive() {
			return out, RentUnchanged
		}
		n := int(out.YearlyRent.Div(*out.MonthlyRent).Round(0).IntPart())
		out.Installments = &n
		return out, RentDerivedInstallment
	}

	return out, RentUnchanged
}

func yearlyOf(monthly decimal.Decimal, installments int) decimal.Decimal {
	return monthly.Mul(decimal.NewFromInt(int64(installments))).Round(2)
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
