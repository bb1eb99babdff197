package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AllocationLine assigns part of a receipt to one invoice.
type AllocationLine struct {
	InvoiceID uint            `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// InvoiceBalance is what the validator needs to know about an invoice.
type InvoiceBalance struct {
	Balance decimal.Decimal
	Payable bool
}

// InvoiceLookup resolves an invoice id. ok is false for unknown invoices.
type InvoiceLookup func(invoiceID uint) (InvoiceBalance, bool)

// AllocationCheck is the outcome of ValidateAllocation.
type AllocationCheck struct {
	Valid      bool             `json:"is_valid"`
	Lines      []AllocationLine `json:"lines"`
	Total      decimal.Decimal  `json:"total"`
	Remainder  decimal.Decimal  `json:"unallocated_remainder"`
	Violations []Violation      `json:"errors"`
	Warnings   []string         `json:"warnings"`
}

// Err returns nil for a valid check and a *ValidationError otherwise.
func (c AllocationCheck) Err() error {
	if c.Valid {
		return nil
	}
	return &ValidationError{Violations: c.Violations}
}

// ValidateAllocation checks a distribution of available receipt money across
// invoices. Every line is checked and every violation is reported; within a
// line the first failing rule wins. The receipt total is checked once after
// the per-line rules.
func ValidateAllocation(available decimal.Decimal, lines []AllocationLine, lookup InvoiceLookup) AllocationCheck {
	check := AllocationCheck{
		Lines:      lines,
		Total:      decimal.Zero,
		Violations: []Violation{},
		Warnings:   []string{},
	}

	// running total per invoice so a split line cannot exceed the balance
	applied := make(map[uint]decimal.Decimal)
	seen := make(map[uint]bool)

	for i, line := range lines {
		n := i + 1
		if line.InvoiceID != 0 && seen[line.InvoiceID] {
			check.Warnings = append(check.Warnings, fmt.Sprintf("line %d: invoice %d appears more than once", n, line.InvoiceID))
		}
		seen[line.InvoiceID] = true

		if line.Amount.IsPositive() {
			check.Total = check.Total.Add(line.Amount)
		}

		if v, bad := checkLine(n, line, lookup, applied); bad {
			check.Violations = append(check.Violations, v)
		}
	}

	if check.Total.GreaterThan(available) {
		check.Violations = append(check.Violations, Violation{
			Code:    CodeReceiptOverdrawn,
			Message: fmt.Sprintf("allocations total %s exceed receipt amount %s", check.Total.StringFixed(2), available.StringFixed(2)),
		})
	}

	check.Valid = len(check.Violations) == 0
	check.Remainder = available.Sub(check.Total)
	if check.Remainder.IsNegative() {
		check.Remainder = decimal.Zero
	}
	if check.Valid && check.Remainder.IsPositive() {
		check.Warnings = append(check.Warnings, fmt.Sprintf("%s of the receipt stays unallocated", check.Remainder.StringFixed(2)))
	}
	return check
}

func checkLine(n int, line AllocationLine, lookup InvoiceLookup, applied map[uint]decimal.Decimal) (Violation, bool) {
	if line.InvoiceID == 0 {
		return Violation{Code: CodeUnknownInvoice, Line: n, Message: "invoice id is required"}, true
	}
	inv, ok := lookup(line.InvoiceID)
	if !ok {
		return Violation{Code: CodeUnknownInvoice, InvoiceID: line.InvoiceID, Line: n,
			Message: fmt.Sprintf("invoice %d not found", line.InvoiceID)}, true
	}
	if !inv.Payable {
		return Violation{Code: CodeInvoiceNotPayable, InvoiceID: line.InvoiceID, Line: n,
			Message: fmt.Sprintf("invoice %d does not accept payments in its current status", line.InvoiceID)}, true
	}
	if !line.Amount.IsPositive() {
		return Violation{Code: CodeNonPositiveAllocation, InvoiceID: line.InvoiceID, Line: n,
			Message: fmt.Sprintf("allocation amount %s must be greater than zero", line.Amount.StringFixed(2))}, true
	}
	cumulative := applied[line.InvoiceID].Add(line.Amount)
	if cumulative.GreaterThan(inv.Balance) {
		return Violation{Code: CodeOverAllocation, InvoiceID: line.InvoiceID, Line: n,
			Message: fmt.Sprintf("allocating %s to invoice %d exceeds its balance %s",
				cumulative.StringFixed(2), line.InvoiceID, inv.Balance.StringFixed(2))}, true
	}
	applied[line.InvoiceID] = cumulative
	return Violation{}, false
}
