package models

import (
	"time"
)

// AuditLog represents a system audit entry
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	CompanyID uint      `gorm:"not null;index" json:"company_id"`
	Action    string    `gorm:"size:50;not null" json:"action"` // POST, REVERSE, ALLOCATE, UPDATE, BULK
	Entity    string    `gorm:"size:50;not null" json:"entity"` // Receipt, Invoice, Voucher, ContractUnit
	EntityID  uint      `json:"entity_id"`
	EntityKey string    `gorm:"size:60;index" json:"entity_key,omitempty"` // voucher number or batch id
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit actions
const (
	AuditActionPost     = "POST"
	AuditActionReverse  = "REVERSE"
	AuditActionAllocate = "ALLOCATE"
	AuditActionCreate   = "CREATE"
	AuditActionUpdate   = "UPDATE"
	AuditActionBulk     = "BULK"
)
