package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceiptRepository defines the interface for receipt data access
type ReceiptRepository interface {
	FindByID(ctx context.Context, companyID, id uint) (*models.Receipt, error)
	FindByIDWithAllocations(ctx context.Context, companyID, id uint) (*models.Receipt, error)
	Lock(ctx context.Context, companyID, id uint) (*models.Receipt, error)
	Create(ctx context.Context, receipt *models.Receipt) error
	UpdateVersioned(ctx context.Context, receipt *models.Receipt, fields map[string]interface{}) error
	MarkPosted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error)
	MarkUnposted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error)
	List(ctx context.Context, filter RangeFilter) ([]models.Receipt, error)
}

type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) FindByID(ctx context.Context, companyID, id uint) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&receipt, id).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *receiptRepository) FindByIDWithAllocations(ctx context.Context, companyID, id uint) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&receipt, id).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Lock reads the receipt with a row lock held until the transaction ends
func (r *receiptRepository) Lock(ctx context.Context, companyID, id uint) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ?", companyID).
		First(&receipt, id).Error
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *receiptRepository) Create(ctx context.Context, receipt *models.Receipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

// UpdateVersioned writes fields only if the row still has the version the
// caller read, then bumps the version on both row and struct.
func (r *receiptRepository) UpdateVersioned(ctx context.Context, receipt *models.Receipt, fields map[string]interface{}) error {
	fields["version"] = receipt.Version + 1
	fields["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("id = ? AND version = ?", receipt.ID, receipt.Version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.Errorf(ledger.CodeConcurrentModification, "receipt %d was modified by another request", receipt.ID)
	}
	receipt.Version++
	return nil
}

// MarkPosted flips is_posted from false to true. false means the receipt
// was already posted.
func (r *receiptRepository) MarkPosted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("company_id = ? AND id = ? AND is_posted = ?", companyID, id, false).
		Updates(map[string]interface{}{
			"is_posted":  true,
			"voucher_no": voucherNo,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkUnposted clears the posted flag of a receipt posted under voucherNo
func (r *receiptRepository) MarkUnposted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Receipt{}).
		Where("company_id = ? AND id = ? AND is_posted = ? AND voucher_no = ?", companyID, id, true, voucherNo).
		Updates(map[string]interface{}{
			"is_posted":  false,
			"voucher_no": nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *receiptRepository) List(ctx context.Context, filter RangeFilter) ([]models.Receipt, error) {
	var receipts []models.Receipt
	err := filter.apply(r.db.WithContext(ctx), "received_date").
		Order("id ASC").
		Find(&receipts).Error
	return receipts, err
}

// AllocationRepository defines the interface for allocation data access
type AllocationRepository interface {
	CreateBatch(ctx context.Context, allocations []models.Allocation) error
	FindByReceipt(ctx context.Context, receiptID uint) ([]models.Allocation, error)
}

type allocationRepository struct {
	db *gorm.DB
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *gorm.DB) AllocationRepository {
	return &allocationRepository{db: db}
}

func (r *allocationRepository) CreateBatch(ctx context.Context, allocations []models.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&allocations).Error
}

func (r *allocationRepository) FindByReceipt(ctx context.Context, receiptID uint) ([]models.Allocation, error) {
	var allocations []models.Allocation
	err := r.db.WithContext(ctx).
		Where("receipt_id = ?", receiptID).
		Order("id ASC").
		Find(&allocations).Error
	return allocations, err
}
