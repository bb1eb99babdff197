package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a customer charge that receipts are allocated against
type Invoice struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CompanyID      uint            `gorm:"not null;index;uniqueIndex:idx_invoices_company_number" json:"company_id"`
	ContractUnitID *uint           `gorm:"index" json:"contract_unit_id,omitempty"`
	CustomerID     uint            `gorm:"not null;index" json:"customer_id"`
	InvoiceNumber  string          `gorm:"size:40;not null;uniqueIndex:idx_invoices_company_number" json:"invoice_number"`
	PeriodStart    *time.Time      `gorm:"type:date" json:"period_start,omitempty"`
	PeriodEnd      *time.Time      `gorm:"type:date" json:"period_end,omitempty"`
	DueDate        time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	GrossAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"gross_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_amount"`
	PaidAmount     decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"paid_amount"`
	BalanceAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"balance_amount"`
	Status         string          `gorm:"size:20;not null;index" json:"status"`
	IsPosted       bool            `gorm:"not null;index" json:"is_posted"`
	VoucherNo      *string         `gorm:"size:40" json:"voucher_no,omitempty"`
	Version        uint            `gorm:"not null" json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// Invoice status constants
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusPosted        = "posted"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusCancelled     = "cancelled"
	InvoiceStatusVoid          = "void"
)

// AcceptsPayment returns true if receipts may be allocated to the invoice
func (i *Invoice) AcceptsPayment() bool {
	return i.Status == InvoiceStatusPosted || i.Status == InvoiceStatusPartiallyPaid
}

// IsBillable returns true once the invoice is issued and not withdrawn
func (i *Invoice) IsBillable() bool {
	switch i.Status {
	case InvoiceStatusPosted, InvoiceStatusPartiallyPaid, InvoiceStatusPaid:
		return true
	}
	return false
}

// BalanceConsistent checks balance = total - paid and 0 <= paid <= total
func (i *Invoice) BalanceConsistent() bool {
	if i.PaidAmount.IsNegative() || i.PaidAmount.GreaterThan(i.TotalAmount) {
		return false
	}
	return i.BalanceAmount.Equal(i.TotalAmount.Sub(i.PaidAmount))
}

// OverdueDays returns the number of days past due on asOf
func (i *Invoice) OverdueDays(asOf time.Time) int {
	if !i.AcceptsPayment() || !asOf.After(i.DueDate) {
		return 0
	}
	return int(asOf.Sub(i.DueDate).Hours() / 24)
}

// InvoiceResponse is the JSON response format for invoices
type InvoiceResponse struct {
	Invoice
	OverdueDays int `json:"overdue_days"`
}

// ToResponse converts Invoice to InvoiceResponse
func (i *Invoice) ToResponse() InvoiceResponse {
	return InvoiceResponse{Invoice: *i, OverdueDays: i.OverdueDays(time.Now())}
}
