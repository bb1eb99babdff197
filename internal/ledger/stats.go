package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceFact is the read-side projection of an invoice.
type InvoiceFact struct {
	ID         uint
	CustomerID uint
	Status     string
	Total      decimal.Decimal
	Paid       decimal.Decimal
	Balance    decimal.Decimal
	DueDate    time.Time
	// Billable invoices count toward the collection ratio (not draft, cancelled or void).
	Billable bool
	// Outstanding invoices are awaiting payment and feed aging and per-customer rollups.
	Outstanding bool
}

// ReceiptFact is the read-side projection of a receipt.
type ReceiptFact struct {
	ID            uint
	PaymentMethod string
	PaymentType   string
	Amount        decimal.Decimal
	Allocated     decimal.Decimal
	IsPosted      bool
}

// RevenueFact is a signed revenue movement on a date. Reversals are negative.
type RevenueFact struct {
	Date   time.Time
	Amount decimal.Decimal
}

// StatsInput is everything Aggregate needs, already filtered by the caller.
type StatsInput struct {
	AsOf         time.Time
	Invoices     []InvoiceFact
	Receipts     []ReceiptFact
	Revenue      []RevenueFact
	LeaseEntries []LeaseRevenueEntry
}

type Tally struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

func (t *Tally) add(amount decimal.Decimal) {
	t.Count++
	t.Amount = t.Amount.Add(amount)
}

type MonthTotal struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type CustomerTotal struct {
	CustomerID uint            `json:"customer_id"`
	Invoices   int             `json:"invoices"`
	Amount     decimal.Decimal `json:"amount"`
}

// AgingBuckets classifies outstanding balances by days past due.
type AgingBuckets struct {
	Current    decimal.Decimal `json:"current"`
	Days1To30  decimal.Decimal `json:"days_1_30"`
	Days31To60 decimal.Decimal `json:"days_31_60"`
	Days61To90 decimal.Decimal `json:"days_61_90"`
	Over90     decimal.Decimal `json:"over_90"`
}

func (a *AgingBuckets) add(daysPastDue int, amount decimal.Decimal) {
	switch {
	case daysPastDue <= 0:
		a.Current = a.Current.Add(amount)
	case daysPastDue <= 30:
		a.Days1To30 = a.Days1To30.Add(amount)
	case daysPastDue <= 60:
		a.Days31To60 = a.Days31To60.Add(amount)
	case daysPastDue <= 90:
		a.Days61To90 = a.Days61To90.Add(amount)
	default:
		a.Over90 = a.Over90.Add(amount)
	}
}

// Statistics is the dashboard rollup.
type Statistics struct {
	AsOf                  time.Time        `json:"as_of"`
	InvoicesByStatus      map[string]Tally `json:"invoices_by_status"`
	ReceiptsByMethod      map[string]Tally `json:"receipts_by_method"`
	ReceiptsByType        map[string]Tally `json:"receipts_by_type"`
	PostedReceipts        Tally            `json:"posted_receipts"`
	UnpostedReceipts      Tally            `json:"unposted_receipts"`
	RevenueByMonth        []MonthTotal     `json:"revenue_by_month"`
	OutstandingByCustomer []CustomerTotal  `json:"outstanding_by_customer"`
	Aging                 AgingBuckets     `json:"aging"`
	UnpostedLeaseRevenue  Tally            `json:"unposted_lease_revenue"`
	CollectionRatio       decimal.Decimal  `json:"collection_ratio"`
	AverageAllocation     decimal.Decimal  `json:"average_allocation"`
	AllocatedReceipts     int              `json:"allocated_receipts"`
}

// Aggregate computes all rollups. It never fails: records missing optional
// data are left out of the affected denominators.
func Aggregate(in StatsInput) Statistics {
	st := Statistics{
		AsOf:             in.AsOf,
		InvoicesByStatus: map[string]Tally{},
		ReceiptsByMethod: map[string]Tally{},
		ReceiptsByType:   map[string]Tally{},
	}

	billed, collected := decimal.Zero, decimal.Zero
	byCustomer := map[uint]*CustomerTotal{}
	asOf := truncateDay(in.AsOf)

	for _, inv := range in.Invoices {
		t := st.InvoicesByStatus[inv.Status]
		t.add(inv.Total)
		st.InvoicesByStatus[inv.Status] = t

		if inv.Billable {
			billed = billed.Add(inv.Total)
			collected = collected.Add(inv.Paid)
		}
		if !inv.Outstanding || !inv.Balance.IsPositive() {
			continue
		}
		if inv.CustomerID != 0 {
			c, ok := byCustomer[inv.CustomerID]
			if !ok {
				c = &CustomerTotal{CustomerID: inv.CustomerID}
				byCustomer[inv.CustomerID] = c
			}
			c.Invoices++
			c.Amount = c.Amount.Add(inv.Balance)
		}
		days := 0
		if !inv.DueDate.IsZero() {
			days = int(asOf.Sub(truncateDay(inv.DueDate)).Hours() / 24)
		}
		st.Aging.add(days, inv.Balance)
	}

	if billed.IsPositive() {
		st.CollectionRatio = collected.DivRound(billed, 4)
	}

	allocatedTotal := decimal.Zero
	for _, r := range in.Receipts {
		m := st.ReceiptsByMethod[r.PaymentMethod]
		m.add(r.Amount)
		st.ReceiptsByMethod[r.PaymentMethod] = m

		pt := st.ReceiptsByType[r.PaymentType]
		pt.add(r.Amount)
		st.ReceiptsByType[r.PaymentType] = pt

		if r.IsPosted {
			st.PostedReceipts.add(r.Amount)
		} else {
			st.UnpostedReceipts.add(r.Amount)
		}

		if r.Allocated.IsPositive() {
			st.AllocatedReceipts++
			allocatedTotal = allocatedTotal.Add(r.Allocated)
		}
	}
	if st.AllocatedReceipts > 0 {
		st.AverageAllocation = allocatedTotal.DivRound(decimal.NewFromInt(int64(st.AllocatedReceipts)), 2)
	}

	st.RevenueByMonth = revenueByMonth(in.Revenue)

	st.OutstandingByCustomer = make([]CustomerTotal, 0, len(byCustomer))
	for _, c := range byCustomer {
		st.OutstandingByCustomer = append(st.OutstandingByCustomer, *c)
	}
	sort.Slice(st.OutstandingByCustomer, func(i, j int) bool {
		a, b := st.OutstandingByCustomer[i], st.OutstandingByCustomer[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.CustomerID < b.CustomerID
	})

	for _, e := range in.LeaseEntries {
		if !e.IsPosted {
			st.UnpostedLeaseRevenue.add(e.PostingAmount)
		}
	}

	return st
}

func revenueByMonth(facts []RevenueFact) []MonthTotal {
	totals := map[string]decimal.Decimal{}
	for _, f := range facts {
		key := f.Date.Format("2006-01")
		totals[key] = totals[key].Add(f.Amount)
	}
	out := make([]MonthTotal, 0, len(totals))
	for month, amount := range totals {
		out = append(out, MonthTotal{Month: month, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
