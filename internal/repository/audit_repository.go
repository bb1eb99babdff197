package repository

import (
	"context"

	"github.com/sjperalta/fintera-posting/internal/models"

	"gorm.io/gorm"
)

// AuditRepository defines the interface for audit log access
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, companyID uint, query *ListQuery) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, log *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *auditRepository) List(ctx context.Context, companyID uint, query *ListQuery) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&models.AuditLog{}).Where("company_id = ?", companyID)

	if query.Filters["entity"] != "" {
		db = db.Where("entity = ?", query.Filters["entity"])
	}
	if query.Filters["action"] != "" {
		db = db.Where("action = ?", query.Filters["action"])
	}
	if query.Filters["entity_key"] != "" {
		db = db.Where("entity_key = ?", query.Filters["entity_key"])
	}

	// Count total
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.paginate(db.Order("created_at DESC, id DESC")).Find(&logs).Error
	return logs, total, err
}
