package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sjperalta/fintera-posting/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StatisticsRepository stores computed rollups with an expiry
type StatisticsRepository interface {
	GetCache(ctx context.Context, key string, companyID uint) (*models.StatisticsCache, error)
	SetCache(ctx context.Context, key string, companyID uint, data interface{}, ttl time.Duration) error
	InvalidateCompany(ctx context.Context, companyID uint) error
	CleanExpiredCache(ctx context.Context) (int64, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

// NewStatisticsRepository creates a new statistics cache repository
func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

func (r *statisticsRepository) GetCache(ctx context.Context, key string, companyID uint) (*models.StatisticsCache, error) {
	var cache models.StatisticsCache
	err := r.db.WithContext(ctx).
		Where("cache_key = ? AND company_id = ? AND expires_at > ?", key, companyID, time.Now()).
		First(&cache).Error
	if err != nil {
		return nil, err
	}
	return &cache, nil
}

func (r *statisticsRepository) SetCache(ctx context.Context, key string, companyID uint, data interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	cache := models.StatisticsCache{
		CacheKey:  key,
		CompanyID: companyID,
		Data:      jsonData,
		ExpiresAt: time.Now().Add(ttl),
	}

	// Upsert on (cache_key, company_id)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}, {Name: "company_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
	}).Create(&cache).Error
}

// InvalidateCompany drops every cached rollup of a company after a ledger write
func (r *statisticsRepository) InvalidateCompany(ctx context.Context, companyID uint) error {
	return r.db.WithContext(ctx).Where("company_id = ?", companyID).Delete(&models.StatisticsCache{}).Error
}

func (r *statisticsRepository) CleanExpiredCache(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now()).Delete(&models.StatisticsCache{})
	return res.RowsAffected, res.Error
}
