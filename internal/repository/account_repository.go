package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-posting/internal/models"

	"gorm.io/gorm"
)

// AccountRepository defines the interface for chart-of-accounts access
type AccountRepository interface {
	FindByIDs(ctx context.Context, companyID uint, ids ...uint) ([]models.Account, error)
	Create(ctx context.Context, account *models.Account) error
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) FindByIDs(ctx context.Context, companyID uint, ids ...uint) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Find(&accounts).Error
	return accounts, err
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// ExchangeRateRepository defines the interface for currency rate lookups
type ExchangeRateRepository interface {
	FindEffective(ctx context.Context, companyID uint, currency string, on time.Time) (*models.ExchangeRate, error)
	Create(ctx context.Context, rate *models.ExchangeRate) error
}

type exchangeRateRepository struct {
	db *gorm.DB
}

// NewExchangeRateRepository creates a new exchange rate repository
func NewExchangeRateRepository(db *gorm.DB) ExchangeRateRepository {
	return &exchangeRateRepository{db: db}
}

// FindEffective returns the latest rate that took effect on or before on
func (r *exchangeRateRepository) FindEffective(ctx context.Context, companyID uint, currency string, on time.Time) (*models.ExchangeRate, error) {
	var rate models.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND currency = ? AND effective_date <= ?", companyID, currency, on).
		Order("effective_date DESC, id DESC").
		First(&rate).Error
	if err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *exchangeRateRepository) Create(ctx context.Context, rate *models.ExchangeRate) error {
	return r.db.WithContext(ctx).Create(rate).Error
}
