package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerPosting is one leg of a voucher. Voucher numbers are unique within a
// company and each is shared by exactly two rows, one per side. Rows are never deleted; ReversedBy is the only
// column written after insert.
type LedgerPosting struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CompanyID     uint            `gorm:"not null;index;uniqueIndex:idx_ledger_postings_voucher_side" json:"company_id"`
	FiscalYearID  uint            `gorm:"not null" json:"fiscal_year_id"`
	VoucherNo     string          `gorm:"size:40;not null;uniqueIndex:idx_ledger_postings_voucher_side" json:"voucher_no"`
	Side          string          `gorm:"size:6;not null;uniqueIndex:idx_ledger_postings_voucher_side" json:"side"`
	AccountID     uint            `gorm:"not null;index" json:"account_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;not null" json:"currency"`
	ExchangeRate  decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"exchange_rate"`
	BaseAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"base_amount"`
	PostingDate   time.Time       `gorm:"type:date;not null;index" json:"posting_date"`
	Narration     string          `gorm:"type:text" json:"narration"`
	SourceType    string          `gorm:"size:20;not null;index:idx_ledger_postings_source" json:"source_type"`
	SourceID      uint            `gorm:"not null;index:idx_ledger_postings_source" json:"source_id"`
	PeriodStart   *time.Time      `gorm:"type:date" json:"period_start,omitempty"`
	PeriodEnd     *time.Time      `gorm:"type:date" json:"period_end,omitempty"`
	Reference     *string         `gorm:"size:100" json:"reference,omitempty"`
	Kind          string          `gorm:"size:24;not null" json:"kind"`
	ReversalOf    *string         `gorm:"size:40;index" json:"reversal_of,omitempty"`
	ReversalDepth int             `gorm:"not null;default:0" json:"reversal_depth"`
	RootVoucherNo string          `gorm:"size:40;not null;index" json:"root_voucher_no"`
	ReversedBy    *string         `gorm:"size:40" json:"reversed_by,omitempty"`
	CreatedBy     uint            `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName specifies the table name for GORM
func (LedgerPosting) TableName() string {
	return "ledger_postings"
}

// Sides of a voucher
const (
	SideDebit  = "debit"
	SideCredit = "credit"
)

// Source types a voucher can post
const (
	SourceReceipt      = "receipt"
	SourceLeaseRevenue = "lease_revenue"
	SourceInvoice      = "invoice"
)

// Voucher kinds
const (
	KindPosting            = "posting"
	KindReversal           = "reversal"
	KindReversalOfReversal = "reversal_of_reversal"
)

// ReversalKind names a voucher by its distance from the root posting. Every
// level past the first reversal is a reversal of a reversal; ReversalDepth
// tells the levels apart.
func ReversalKind(depth int) string {
	switch {
	case depth <= 0:
		return KindPosting
	case depth == 1:
		return KindReversal
	}
	return KindReversalOfReversal
}

// UnpostsSource reports whether a voucher at this depth takes its source
// back out of the ledger. Odd depths cancel the root posting.
func UnpostsSource(depth int) bool {
	return depth%2 == 1
}

// IsReversal returns true for both reversal kinds
func (p *LedgerPosting) IsReversal() bool {
	return p.Kind == KindReversal || p.Kind == KindReversalOfReversal
}

// ValidSourceType reports whether s names a postable source
func ValidSourceType(s string) bool {
	switch s {
	case SourceReceipt, SourceLeaseRevenue, SourceInvoice:
		return true
	}
	return false
}

// VoucherSequence holds the next number per company, fiscal year and prefix.
type VoucherSequence struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CompanyID    uint      `gorm:"not null;uniqueIndex:idx_voucher_sequences_scope" json:"company_id"`
	FiscalYearID uint      `gorm:"not null;uniqueIndex:idx_voucher_sequences_scope" json:"fiscal_year_id"`
	Prefix       string    `gorm:"size:4;not null;uniqueIndex:idx_voucher_sequences_scope" json:"prefix"`
	NextValue    int64     `gorm:"not null" json:"next_value"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (VoucherSequence) TableName() string {
	return "voucher_sequences"
}

// Voucher number prefixes
const (
	PrefixJournal  = "JV"
	PrefixReversal = "RV"
)

// FormatVoucherNo renders PREFIX-FY-000001
func FormatVoucherNo(prefix string, fiscalYearID uint, n int64) string {
	return fmt.Sprintf("%s-%d-%06d", prefix, fiscalYearID, n)
}

// Voucher is both legs of one voucher number, as returned to callers.
type Voucher struct {
	VoucherNo     string          `json:"voucher_no"`
	Kind          string          `json:"kind"`
	PostingDate   time.Time       `json:"posting_date"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	SourceType    string          `json:"source_type"`
	SourceID      uint            `json:"source_id"`
	Narration     string          `json:"narration"`
	ReversalOf    *string         `json:"reversal_of,omitempty"`
	ReversalDepth int             `json:"reversal_depth"`
	RootVoucherNo string          `json:"root_voucher_no"`
	ReversedBy    *string         `json:"reversed_by,omitempty"`
	Debit         LedgerPosting   `json:"debit"`
	Credit        LedgerPosting   `json:"credit"`
}

// NewVoucher pairs the legs of one voucher. ok is false unless there is
// exactly one debit and one credit leg.
func NewVoucher(legs []LedgerPosting) (Voucher, bool) {
	if len(legs) != 2 {
		return Voucher{}, false
	}
	var v Voucher
	var hasDebit, hasCredit bool
	for _, leg := range legs {
		switch leg.Side {
		case SideDebit:
			v.Debit, hasDebit = leg, true
		case SideCredit:
			v.Credit, hasCredit = leg, true
		}
	}
	if !hasDebit || !hasCredit {
		return Voucher{}, false
	}
	v.VoucherNo = v.Debit.VoucherNo
	v.Kind = v.Debit.Kind
	v.PostingDate = v.Debit.PostingDate
	v.Amount = v.Debit.Amount
	v.Currency = v.Debit.Currency
	v.SourceType = v.Debit.SourceType
	v.SourceID = v.Debit.SourceID
	v.Narration = v.Debit.Narration
	v.ReversalOf = v.Debit.ReversalOf
	v.ReversalDepth = v.Debit.ReversalDepth
	v.RootVoucherNo = v.Debit.RootVoucherNo
	v.ReversedBy = v.Debit.ReversedBy
	return v, true
}

// Balanced reports whether both legs carry the same amount on different
// accounts under the same voucher number.
func (v Voucher) Balanced() bool {
	return v.Debit.VoucherNo == v.Credit.VoucherNo &&
		v.Debit.Amount.Equal(v.Credit.Amount) &&
		v.Debit.BaseAmount.Equal(v.Credit.BaseAmount) &&
		v.Debit.AccountID != v.Credit.AccountID &&
		v.Debit.Amount.IsPositive()
}
