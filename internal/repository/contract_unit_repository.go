package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContractUnitRepository defines the interface for lease contract unit access
type ContractUnitRepository interface {
	FindByID(ctx context.Context, companyID, id uint) (*models.ContractUnit, error)
	Create(ctx context.Context, unit *models.ContractUnit) error
	UpdateRent(ctx context.Context, unit *models.ContractUnit) error
	ListOverlapping(ctx context.Context, companyID uint, from, to time.Time) ([]models.ContractUnit, error)
}

type contractUnitRepository struct {
	db *gorm.DB
}

// NewContractUnitRepository creates a new contract unit repository
func NewContractUnitRepository(db *gorm.DB) ContractUnitRepository {
	return &contractUnitRepository{db: db}
}

func (r *contractUnitRepository) FindByID(ctx context.Context, companyID, id uint) (*models.ContractUnit, error) {
	var unit models.ContractUnit
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&unit, id).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *contractUnitRepository) Create(ctx context.Context, unit *models.ContractUnit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

// UpdateRent stores the three rent figures under the version check
func (r *contractUnitRepository) UpdateRent(ctx context.Context, unit *models.ContractUnit) error {
	res := r.db.WithContext(ctx).
		Model(&models.ContractUnit{}).
		Where("id = ? AND version = ?", unit.ID, unit.Version).
		Updates(map[string]interface{}{
			"monthly_rent": unit.MonthlyRent,
			"yearly_rent":  unit.YearlyRent,
			"installments": unit.Installments,
			"version":      unit.Version + 1,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.Errorf(ledger.CodeConcurrentModification, "contract unit %d was modified by another request", unit.ID)
	}
	unit.Version++
	return nil
}

// ListOverlapping returns units whose lease intersects [from, to]
func (r *contractUnitRepository) ListOverlapping(ctx context.Context, companyID uint, from, to time.Time) ([]models.ContractUnit, error) {
	var units []models.ContractUnit
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND start_date <= ? AND end_date >= ?", companyID, to, from).
		Order("id ASC").
		Find(&units).Error
	return units, err
}

// LeaseRevenueRepository defines the interface for lease revenue posting markers
type LeaseRevenueRepository interface {
	FindPostedOverlap(ctx context.Context, unitID uint, start, end time.Time) (*models.LeaseRevenuePosting, error)
	FindByVoucher(ctx context.Context, companyID uint, voucherNo string) (*models.LeaseRevenuePosting, error)
	ListByUnits(ctx context.Context, unitIDs []uint) ([]models.LeaseRevenuePosting, error)
	MarkPosted(ctx context.Context, marker *models.LeaseRevenuePosting) (bool, error)
	MarkUnposted(ctx context.Context, id uint, voucherNo string) (bool, error)
	PostedRevenue(ctx context.Context, unitIDs []uint) (map[uint]decimal.Decimal, error)
}

type leaseRevenueRepository struct {
	db *gorm.DB
}

// NewLeaseRevenueRepository creates a new lease revenue repository
func NewLeaseRevenueRepository(db *gorm.DB) LeaseRevenueRepository {
	return &leaseRevenueRepository{db: db}
}

// FindPostedOverlap returns the earliest posted marker of the unit whose
// period shares at least one day with [start, end].
func (r *leaseRevenueRepository) FindPostedOverlap(ctx context.Context, unitID uint, start, end time.Time) (*models.LeaseRevenuePosting, error) {
	var marker models.LeaseRevenuePosting
	err := r.db.WithContext(ctx).
		Where("contract_unit_id = ? AND is_posted = ? AND period_start <= ? AND period_end >= ?", unitID, true, end, start).
		Order("period_start ASC").
		First(&marker).Error
	if err != nil {
		return nil, err
	}
	return &marker, nil
}

func (r *leaseRevenueRepository) FindByVoucher(ctx context.Context, companyID uint, voucherNo string) (*models.LeaseRevenuePosting, error) {
	var marker models.LeaseRevenuePosting
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND voucher_no = ?", companyID, voucherNo).
		First(&marker).Error
	if err != nil {
		return nil, err
	}
	return &marker, nil
}

func (r *leaseRevenueRepository) ListByUnits(ctx context.Context, unitIDs []uint) ([]models.LeaseRevenuePosting, error) {
	var markers []models.LeaseRevenuePosting
	if len(unitIDs) == 0 {
		return markers, nil
	}
	err := r.db.WithContext(ctx).
		Where("contract_unit_id IN ?", unitIDs).
		Order("contract_unit_id ASC, period_start ASC").
		Find(&markers).Error
	return markers, err
}

// MarkPosted records the period as posted. The marker is inserted when the
// period was never posted, otherwise an unposted marker is flipped. false
// means the period is already posted.
func (r *leaseRevenueRepository) MarkPosted(ctx context.Context, marker *models.LeaseRevenuePosting) (bool, error) {
	marker.IsPosted = true
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(marker)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	res = r.db.WithContext(ctx).
		Model(&models.LeaseRevenuePosting{}).
		Where("contract_unit_id = ? AND period_start = ? AND period_end = ? AND is_posted = ?",
			marker.ContractUnitID, marker.PeriodStart, marker.PeriodEnd, false).
		Updates(map[string]interface{}{
			"is_posted":        true,
			"voucher_no":       marker.VoucherNo,
			"total_lease_days": marker.TotalLeaseDays,
			"rent_per_day":     marker.RentPerDay,
			"posting_amount":   marker.PostingAmount,
			"updated_at":       time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkUnposted clears the posted flag of the marker posted under voucherNo
func (r *leaseRevenueRepository) MarkUnposted(ctx context.Context, id uint, voucherNo string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LeaseRevenuePosting{}).
		Where("id = ? AND is_posted = ? AND voucher_no = ?", id, true, voucherNo).
		Updates(map[string]interface{}{
			"is_posted":  false,
			"voucher_no": nil,
			"updated_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// PostedRevenue sums posted marker amounts per unit
func (r *leaseRevenueRepository) PostedRevenue(ctx context.Context, unitIDs []uint) (map[uint]decimal.Decimal, error) {
	out := make(map[uint]decimal.Decimal, len(unitIDs))
	if len(unitIDs) == 0 {
		return out, nil
	}
	var markers []models.LeaseRevenuePosting
	err := r.db.WithContext(ctx).
		Select("contract_unit_id", "posting_amount").
		Where("contract_unit_id IN ? AND is_posted = ?", unitIDs, true).
		Find(&markers).Error
	if err != nil {
		return nil, err
	}
	for _, m := range markers {
		out[m.ContractUnitID] = out[m.ContractUnitID].Add(m.PostingAmount)
	}
	return out, nil
}
