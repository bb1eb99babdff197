package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaysInRentYear is the divisor for the daily rent rate.
const DaysInRentYear = 365

// LeaseTerm is the slice of a contract unit needed to accrue revenue.
type LeaseTerm struct {
	ContractUnitID uint
	LeaseNumber    string
	Start          time.Time
	End            time.Time
	YearlyRent     decimal.Decimal
}

// LeaseRevenueEntry is the revenue earned by one contract unit over a period.
type LeaseRevenueEntry struct {
	ContractUnitID uint            `json:"contract_unit_id"`
	LeaseNumber    string          `json:"lease_number"`
	PeriodStart    time.Time       `json:"period_start"`
	PeriodEnd      time.Time       `json:"period_end"`
	TotalLeaseDays int             `json:"total_lease_days"`
	RentPerDay     decimal.Decimal `json:"rent_per_day"`
	PostingAmount  decimal.Decimal `json:"posting_amount"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsPosted       bool            `json:"is_posted"`
	VoucherNo      string          `json:"voucher_no,omitempty"`
}

// RentPerDay returns yearly rent spread over DaysInRentYear, at 6 decimals.
func RentPerDay(yearly decimal.Decimal) decimal.Decimal {
	return yearly.DivRound(decimal.NewFromInt(DaysInRentYear), 6)
}

// InclusiveDays counts calendar days from start to end, both included.
func InclusiveDays(start, end time.Time) int {
	s := truncateDay(start)
	e := truncateDay(end)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}

// ComputeLeaseEntry intersects the lease with [from, to] and prices the
// overlap. ok is false when the two do not overlap or the range is inverted.
// postedRevenue is the revenue already posted for the unit and reduces the
// current balance.
func ComputeLeaseEntry(term LeaseTerm, from, to time.Time, postedRevenue decimal.Decimal) (LeaseRevenueEntry, bool) {
	from, to = truncateDay(from), truncateDay(to)
	if to.Before(from) {
		return LeaseRevenueEntry{}, false
	}
	start := maxTime(truncateDay(term.Start), from)
	end := minTime(truncateDay(term.End), to)
	if end.Before(start) {
		return LeaseRevenueEntry{}, false
	}

	rate := RentPerDay(term.YearlyRent)
	days := InclusiveDays(start, end)
	contractValue := rate.Mul(decimal.NewFromInt(int64(InclusiveDays(term.Start, term.End)))).Round(2)

	return LeaseRevenueEntry{
		ContractUnitID: term.ContractUnitID,
		LeaseNumber:    term.LeaseNumber,
		PeriodStart:    start,
		PeriodEnd:      end,
		TotalLeaseDays: days,
		RentPerDay:     rate,
		PostingAmount:  rate.Mul(decimal.NewFromInt(int64(days))).Round(2),
		CurrentBalance: contractValue.Sub(postedRevenue),
	}, true
}

// ValidatePeriod rejects a missing or inverted posting period.
func ValidatePeriod(start, end *time.Time) error {
	if start == nil || end == nil || start.IsZero() || end.IsZero() {
		return Errorf(CodeInvalidPeriod, "period start and end are required")
	}
	if truncateDay(*end).Before(truncateDay(*start)) {
		return Errorf(CodeInvalidPeriod, "period end %s is before start %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
