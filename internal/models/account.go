package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a general-ledger account in the chart of accounts
type Account struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CompanyID uint      `gorm:"not null;uniqueIndex:idx_accounts_company_code" json:"company_id"`
	Code      string    `gorm:"size:30;not null;uniqueIndex:idx_accounts_company_code" json:"code"`
	Name      string    `gorm:"size:150;not null" json:"name"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "accounts"
}

// ExchangeRate converts a foreign currency to the company base currency
type ExchangeRate struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	CompanyID     uint            `gorm:"not null;index:idx_exchange_rates_lookup" json:"company_id"`
	Currency      string          `gorm:"size:3;not null;index:idx_exchange_rates_lookup" json:"currency"`
	Rate          decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"rate"`
	EffectiveDate time.Time       `gorm:"type:date;not null;index:idx_exchange_rates_lookup" json:"effective_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName specifies the table name for ExchangeRate
func (ExchangeRate) TableName() string {
	return "exchange_rates"
}
