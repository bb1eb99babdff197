package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-posting/internal/ledger"
)

// ContractUnit is one unit on a lease contract and carries the rent terms
type ContractUnit struct {
	ID                  uint             `gorm:"primaryKey" json:"id"`
	CompanyID           uint             `gorm:"not null;index" json:"company_id"`
	ContractID          uint             `gorm:"not null;index" json:"contract_id"`
	LeaseNumber         string           `gorm:"size:40;not null;index" json:"lease_number"`
	UnitID              uint             `gorm:"not null;index" json:"unit_id"`
	CustomerID          uint             `gorm:"not null;index" json:"customer_id"`
	StartDate           time.Time        `gorm:"type:date;not null" json:"start_date"`
	EndDate             time.Time        `gorm:"type:date;not null" json:"end_date"`
	MonthlyRent         *decimal.Decimal `gorm:"type:decimal(15,2)" json:"monthly_rent"`
	YearlyRent          *decimal.Decimal `gorm:"type:decimal(15,2)" json:"yearly_rent"`
	Installments        *int             `json:"installments"`
	ReceivableAccountID uint             `gorm:"not null" json:"receivable_account_id"`
	RevenueAccountID    uint             `gorm:"not null" json:"revenue_account_id"`
	Version             uint             `gorm:"not null" json:"version"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// TableName specifies the table name for ContractUnit
func (ContractUnit) TableName() string {
	return "contract_units"
}

// RentTerms returns the rent figures as the synchronizer sees them
func (u *ContractUnit) RentTerms() ledger.RentTerms {
	return ledger.RentTerms{MonthlyRent: u.MonthlyRent, YearlyRent: u.YearlyRent, Installments: u.Installments}
}

// LeaseTerm returns the accrual view of the unit. Units without a yearly
// rent accrue nothing.
func (u *ContractUnit) LeaseTerm() ledger.LeaseTerm {
	yearly := decimal.Zero
	if u.YearlyRent != nil {
		yearly = *u.YearlyRent
	}
	return ledger.LeaseTerm{
		ContractUnitID: u.ID,
		LeaseNumber:    u.LeaseNumber,
		Start:          u.StartDate,
		End:            u.EndDate,
		YearlyRent:     yearly,
	}
}

// LeaseRevenuePosting marks revenue for one unit and period as posted
type LeaseRevenuePosting struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	CompanyID      uint            `gorm:"not null;index" json:"company_id"`
	ContractUnitID uint            `gorm:"not null;uniqueIndex:idx_lease_revenue_unit_period" json:"contract_unit_id"`
	PeriodStart    time.Time       `gorm:"type:date;not null;uniqueIndex:idx_lease_revenue_unit_period" json:"period_start"`
	PeriodEnd      time.Time       `gorm:"type:date;not null;uniqueIndex:idx_lease_revenue_unit_period" json:"period_end"`
	TotalLeaseDays int             `gorm:"not null" json:"total_lease_days"`
	RentPerDay     decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"rent_per_day"`
	PostingAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"posting_amount"`
	IsPosted       bool            `gorm:"not null;index" json:"is_posted"`
	VoucherNo      *string         `gorm:"size:40" json:"voucher_no,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName specifies the table name for LeaseRevenuePosting
func (LeaseRevenuePosting) TableName() string {
	return "lease_revenue_postings"
}
