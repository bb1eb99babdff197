package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Repositories holds all repository instances bound to one *gorm.DB, which
// is either the pool or an open transaction.
type Repositories struct {
	db *gorm.DB

	Account      AccountRepository
	ExchangeRate ExchangeRateRepository
	Invoice      InvoiceRepository
	Receipt      ReceiptRepository
	Allocation   AllocationRepository
	Posting      PostingRepository
	Sequence     SequenceRepository
	ContractUnit ContractUnitRepository
	LeaseRevenue LeaseRevenueRepository
	Audit        AuditRepository
	Statistics   StatisticsRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Account:      NewAccountRepository(db),
		ExchangeRate: NewExchangeRateRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Receipt:      NewReceiptRepository(db),
		Allocation:   NewAllocationRepository(db),
		Posting:      NewPostingRepository(db),
		Sequence:     NewSequenceRepository(db),
		ContractUnit: NewContractUnitRepository(db),
		LeaseRevenue: NewLeaseRevenueRepository(db),
		Audit:        NewAuditRepository(db),
		Statistics:   NewStatisticsRepository(db),
	}
}

// Transaction runs fn with repositories bound to a single transaction. Every
// read and write of fn must go through tx; the transaction commits when fn
// returns nil and rolls back otherwise.
func (r *Repositories) Transaction(ctx context.Context, fn func(tx *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

func (q *ListQuery) paginate(db *gorm.DB) *gorm.DB {
	if q.PerPage > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * q.PerPage).Limit(q.PerPage)
	}
	return db
}

// RangeFilter narrows read-side queries for statistics and listings
type RangeFilter struct {
	CompanyID  uint
	From       *time.Time
	To         *time.Time
	CustomerID *uint
}

func (f RangeFilter) apply(db *gorm.DB, dateColumn string) *gorm.DB {
	db = db.Where("company_id = ?", f.CompanyID)
	if f.From != nil {
		db = db.Where(dateColumn+" >= ?", *f.From)
	}
	if f.To != nil {
		db = db.Where(dateColumn+" <= ?", *f.To)
	}
	if f.CustomerID != nil {
		db = db.Where("customer_id = ?", *f.CustomerID)
	}
	return db
}
