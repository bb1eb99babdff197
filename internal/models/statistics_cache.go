package models

import (
	"encoding/json"
	"time"
)

// StatisticsCache represents a cached statistics rollup
type StatisticsCache struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CacheKey  string          `gorm:"size:200;not null;uniqueIndex:idx_statistics_cache_key_company" json:"cache_key"`
	CompanyID uint            `gorm:"not null;uniqueIndex:idx_statistics_cache_key_company" json:"company_id"`
	Data      json.RawMessage `gorm:"type:jsonb;not null" json:"data"`
	ExpiresAt time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for StatisticsCache
func (StatisticsCache) TableName() string {
	return "statistics_cache"
}
