package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-posting/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostingRepository defines the interface for voucher leg data access.
// Legs are append-only: there is no update or delete besides MarkReversed.
type PostingRepository interface {
	CreateLegs(ctx context.Context, legs []models.LedgerPosting) error
	FindByVoucher(ctx context.Context, companyID uint, voucherNo string) ([]models.LedgerPosting, error)
	FindBySource(ctx context.Context, companyID uint, sourceType string, sourceID uint) ([]models.LedgerPosting, error)
	FindChain(ctx context.Context, companyID uint, rootVoucherNo string) ([]models.LedgerPosting, error)
	MarkReversed(ctx context.Context, companyID uint, voucherNo, reversedBy string) (int64, error)
	ListBySourceType(ctx context.Context, companyID uint, sourceType string, from, to *time.Time) ([]models.LedgerPosting, error)
}

type postingRepository struct {
	db *gorm.DB
}

// NewPostingRepository creates a new posting repository
func NewPostingRepository(db *gorm.DB) PostingRepository {
	return &postingRepository{db: db}
}

// CreateLegs inserts both legs of a voucher in one statement
func (r *postingRepository) CreateLegs(ctx context.Context, legs []models.LedgerPosting) error {
	return r.db.WithContext(ctx).Create(&legs).Error
}

// FindByVoucher retrieves the legs of a voucher, debit first
func (r *postingRepository) FindByVoucher(ctx context.Context, companyID uint, voucherNo string) ([]models.LedgerPosting, error) {
	var legs []models.LedgerPosting
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND voucher_no = ?", companyID, voucherNo).
		Order("side DESC").
		Find(&legs).Error
	return legs, err
}

// FindBySource retrieves every leg ever posted for a source, oldest first
func (r *postingRepository) FindBySource(ctx context.Context, companyID uint, sourceType string, sourceID uint) ([]models.LedgerPosting, error) {
	var legs []models.LedgerPosting
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ? AND source_id = ?", companyID, sourceType, sourceID).
		Order("id ASC").
		Find(&legs).Error
	return legs, err
}

// FindChain retrieves a voucher and all reversals descending from it
func (r *postingRepository) FindChain(ctx context.Context, companyID uint, rootVoucherNo string) ([]models.LedgerPosting, error) {
	var legs []models.LedgerPosting
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND root_voucher_no = ?", companyID, rootVoucherNo).
		Order("id ASC").
		Find(&legs).Error
	return legs, err
}

// MarkReversed sets reversed_by on both legs once. The returned count is the
// number of legs changed; anything but 2 means the voucher was already
// reversed or is damaged.
func (r *postingRepository) MarkReversed(ctx context.Context, companyID uint, voucherNo, reversedBy string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LedgerPosting{}).
		Where("company_id = ? AND voucher_no = ? AND reversed_by IS NULL", companyID, voucherNo).
		Update("reversed_by", reversedBy)
	return res.RowsAffected, res.Error
}

// ListBySourceType retrieves legs of one source type posted within a range
func (r *postingRepository) ListBySourceType(ctx context.Context, companyID uint, sourceType string, from, to *time.Time) ([]models.LedgerPosting, error) {
	var legs []models.LedgerPosting
	db := r.db.WithContext(ctx).
		Where("company_id = ? AND source_type = ?", companyID, sourceType)
	if from != nil {
		db = db.Where("posting_date >= ?", *from)
	}
	if to != nil {
		db = db.Where("posting_date <= ?", *to)
	}
	err := db.Order("posting_date ASC, id ASC").Find(&legs).Error
	return legs, err
}

// SequenceRepository hands out voucher numbers
type SequenceRepository interface {
	Next(ctx context.Context, companyID, fiscalYearID uint, prefix string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next reserves the next number of a sequence. It must run inside the
// transaction that uses the number so a rollback leaves no gap.
func (r *sequenceRepository) Next(ctx context.Context, companyID, fiscalYearID uint, prefix string) (int64, error) {
	db := r.db.WithContext(ctx)

	seed := models.VoucherSequence{CompanyID: companyID, FiscalYearID: fiscalYearID, Prefix: prefix, NextValue: 1}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return 0, err
	}

	var seq models.VoucherSequence
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND fiscal_year_id = ? AND prefix = ?", companyID, fiscalYearID, prefix).
		First(&seq).Error
	if err != nil {
		return 0, err
	}

	err = db.Model(&models.VoucherSequence{}).
		Where("id = ?", seq.ID).
		Updates(map[string]interface{}{
			"next_value": seq.NextValue + 1,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return 0, err
	}
	return seq.NextValue, nil
}
