package repository

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository defines the interface for invoice data access
type InvoiceRepository interface {
	FindByID(ctx context.Context, companyID, id uint) (*models.Invoice, error)
	FindByIDs(ctx context.Context, companyID uint, ids []uint) ([]models.Invoice, error)
	LockByIDs(ctx context.Context, companyID uint, ids []uint) ([]models.Invoice, error)
	Create(ctx context.Context, invoice *models.Invoice) error
	UpdateVersioned(ctx context.Context, invoice *models.Invoice, fields map[string]interface{}) error
	MarkPosted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error)
	MarkUnposted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error)
	List(ctx context.Context, filter RangeFilter) ([]models.Invoice, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) FindByID(ctx context.Context, companyID, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		First(&invoice, id).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDs(ctx context.Context, companyID uint, ids []uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if len(ids) == 0 {
		return invoices, nil
	}
	err := r.db.WithContext(ctx).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Order("id ASC").
		Find(&invoices).Error
	return invoices, err
}

// LockByIDs row-locks the invoices in ascending id order so that two
// allocations touching the same invoices cannot deadlock.
func (r *invoiceRepository) LockByIDs(ctx context.Context, companyID uint, ids []uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if len(ids) == 0 {
		return invoices, nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND id IN ?", companyID, ids).
		Order("id ASC").
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// UpdateVersioned writes fields only if the row still has the version the
// caller read, then bumps the version on both row and struct.
func (r *invoiceRepository) UpdateVersioned(ctx context.Context, invoice *models.Invoice, fields map[string]interface{}) error {
	fields["version"] = invoice.Version + 1
	fields["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledger.Errorf(ledger.CodeConcurrentModification, "invoice %d was modified by another request", invoice.ID)
	}
	invoice.Version++
	return nil
}

// MarkPosted flips a draft, unposted invoice to posted. false means another
// request got there first.
func (r *invoiceRepository) MarkPosted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("company_id = ? AND id = ? AND is_posted = ? AND status = ?", companyID, id, false, models.InvoiceStatusDraft).
		Updates(map[string]interface{}{
			"is_posted":  true,
			"status":     models.InvoiceStatusPosted,
			"voucher_no": voucherNo,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// MarkUnposted returns an invoice posted under voucherNo to draft
func (r *invoiceRepository) MarkUnposted(ctx context.Context, companyID, id uint, voucherNo string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("company_id = ? AND id = ? AND is_posted = ? AND voucher_no = ?", companyID, id, true, voucherNo).
		Updates(map[string]interface{}{
			"is_posted":  false,
			"status":     models.InvoiceStatusDraft,
			"voucher_no": nil,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *invoiceRepository) List(ctx context.Context, filter RangeFilter) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := filter.apply(r.db.WithContext(ctx), "due_date").
		Order("id ASC").
		Find(&invoices).Error
	return invoices, err
}
