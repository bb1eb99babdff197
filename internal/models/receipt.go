package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is cash received from a customer
type Receipt struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	CompanyID        uint            `gorm:"not null;index;uniqueIndex:idx_receipts_company_number" json:"company_id"`
	CustomerID       uint            `gorm:"not null;index" json:"customer_id"`
	ReceiptNumber    string          `gorm:"size:40;not null;uniqueIndex:idx_receipts_company_number" json:"receipt_number"`
	Amount           decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	AllocatedAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"allocated_amount"`
	PaymentMethod    string          `gorm:"size:20;not null;index" json:"payment_method"`
	PaymentType      string          `gorm:"size:20;not null;index" json:"payment_type"`
	BankName         *string         `gorm:"size:100" json:"bank_name,omitempty"`
	Reference        *string         `gorm:"size:100" json:"reference,omitempty"`
	ReceivedDate     time.Time       `gorm:"type:date;not null;index" json:"received_date"`
	DepositDate      *time.Time      `gorm:"type:date" json:"deposit_date,omitempty"`
	DepositReference *string         `gorm:"size:100" json:"deposit_reference,omitempty"`
	ClearanceDate    *time.Time      `gorm:"type:date" json:"clearance_date,omitempty"`
	Status           string          `gorm:"size:20;not null;index" json:"status"`
	DebitAccountID   uint            `gorm:"not null" json:"debit_account_id"`
	CreditAccountID  uint            `gorm:"not null" json:"credit_account_id"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	Narration        string          `gorm:"type:text" json:"narration"`
	IsPosted         bool            `gorm:"not null;index" json:"is_posted"`
	VoucherNo        *string         `gorm:"size:40" json:"voucher_no,omitempty"`
	Version          uint            `gorm:"not null" json:"version"`
	CreatedBy        uint            `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	// Associations
	Allocations []Allocation `gorm:"foreignKey:ReceiptID" json:"allocations,omitempty"`
}

// TableName specifies the table name for Receipt
func (Receipt) TableName() string {
	return "receipts"
}

// Receipt status constants
const (
	ReceiptStatusReceived  = "received"
	ReceiptStatusDeposited = "deposited"
	ReceiptStatusCleared   = "cleared"
	ReceiptStatusBounced   = "bounced"
)

// Payment method constants
const (
	PaymentMethodCash         = "cash"
	PaymentMethodCheque       = "cheque"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodCard         = "card"
	PaymentMethodOnline       = "online"
)

// Payment type constants
const (
	PaymentTypeRent    = "rent"
	PaymentTypeDeposit = "deposit"
	PaymentTypeAdvance = "advance"
	PaymentTypeOther   = "other"
)

// ValidPaymentMethod reports whether m is a known payment method
func ValidPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCheque, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodOnline:
		return true
	}
	return false
}

// ValidPaymentType reports whether t is a known payment type
func ValidPaymentType(t string) bool {
	switch t {
	case PaymentTypeRent, PaymentTypeDeposit, PaymentTypeAdvance, PaymentTypeOther:
		return true
	}
	return false
}

// ValidReceiptStatus reports whether s is a known receipt status
func ValidReceiptStatus(s string) bool {
	switch s {
	case ReceiptStatusReceived, ReceiptStatusDeposited, ReceiptStatusCleared, ReceiptStatusBounced:
		return true
	}
	return false
}

// Unallocated returns the part of the receipt not yet allocated to invoices
func (r *Receipt) Unallocated() decimal.Decimal {
	return r.Amount.Sub(r.AllocatedAmount)
}

// Allocation applies part of a receipt to an invoice
type Allocation struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	ReceiptID uint            `gorm:"not null;index" json:"receipt_id"`
	InvoiceID uint            `gorm:"not null;index" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	CreatedBy uint            `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for Allocation
func (Allocation) TableName() string {
	return "allocations"
}
