package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func ip(i int) *int { return &i }

func TestSyncRent_DerivesYearly(t *testing.T) {
	out, how := SyncRent(RentTerms{MonthlyRent: dp("1000"), Installments: ip(12)})

	assert.Equal(t, RentDerivedYearly, how)
	require.NotNil(t, out.YearlyRent)
	assert.True(t, out.YearlyRent.Equal(decimal.NewFromInt(12000)))
}

func TestSyncRent_RoundTrip(t *testing.T) {
	first, _ := SyncRent(RentTerms{MonthlyRent: dp("1000"), Installments: ip(12)})

	// drop monthly and derive it back from yearly and installments
	second, how := SyncRent(RentTerms{YearlyRent: first.YearlyRent, Installments: first.Installments})
	assert.Equal(t, RentDerivedMonthly, how)
	require.NotNil(t, second.MonthlyRent)
	assert.True(t, second.MonthlyRent.Equal(decimal.NewFromInt(1000)))

	third, how := SyncRent(RentTerms{YearlyRent: first.YearlyRent, MonthlyRent: second.MonthlyRent})
	assert.Equal(t, RentDerivedInstallment, how)
	require.NotNil(t, third.Installments)
	assert.Equal(t, 12, *third.Installments)
}

func TestSyncRent_InconsistentRecomputesYearly(t *testing.T) {
	in := RentTerms{MonthlyRent: dp("1000"), YearlyRent: dp("12000"), Installments: ip(11)}
	out, how := SyncRent(in)

	assert.Equal(t, RentRecomputedYearly, how)
	assert.True(t, out.YearlyRent.Equal(decimal.NewFromInt(11000)))
	assert.True(t, out.MonthlyRent.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 11, *out.Installments)
	// input untouched
	assert.True(t, in.YearlyRent.Equal(decimal.NewFromInt(12000)))
}

func TestSyncRent_WithinTolerance(t *testing.T) {
	out, how := SyncRent(RentTerms{MonthlyRent: dp("333.33"), YearlyRent: dp("3999.97"), Installments: ip(12)})

	assert.Equal(t, RentUnchanged, how)
	assert.True(t, out.YearlyRent.Equal(decimal.RequireFromString("3999.97")))
}

func TestSyncRent_NotEnoughInputs(t *testing.T) {
	out, how := SyncRent(RentTerms{MonthlyRent: dp("1000")})
	assert.Equal(t, RentUnchanged, how)
	assert.Nil(t, out.YearlyRent)
	assert.Nil(t, out.Installments)

	out, how = SyncRent(RentTerms{})
	assert.Equal(t, RentUnchanged, how)
	assert.Nil(t, out.MonthlyRent)
}

func TestSyncRent_ZeroDivisorLeavesValueAbsent(t *testing.T) {
	out, how := SyncRent(RentTerms{YearlyRent: dp("12000"), Installments: ip(0)})
	assert.Equal(t, RentUnchanged, how)
	assert.Nil(t, out.MonthlyRent)

	out, how = SyncRent(RentTerms{YearlyRent: dp("12000"), MonthlyRent: dp("0")})
	assert.Equal(t, RentUnchanged, how)
	assert.Nil(t, out.Installments)
}

func TestSyncRent_MonthlyRoundedToCents(t *testing.T) {
	out, _ := SyncRent(RentTerms{YearlyRent: dp("10000"), Installments: ip(12)})
	assert.Equal(t, "833.33", out.MonthlyRent.StringFixed(2))
}
