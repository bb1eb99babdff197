package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
)

// Actor identifies who performs an operation and in which books
type Actor struct {
	UserID       uint
	CompanyID    uint
	FiscalYearID uint
	IP           string
	UserAgent    string
}

type AuditService struct {
	repos *repository.Repositories
}

func NewAuditService(repos *repository.Repositories) *AuditService {
	return &AuditService{repos: repos}
}

// Record writes an audit entry through repo, which is normally bound to the
// transaction of the change being described.
func (s *AuditService) Record(ctx context.Context, repo repository.AuditRepository, actor Actor, action, entity string, entityID uint, key string, details any) error {
	var text string
	switch d := details.(type) {
	case nil:
	case string:
		text = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
		text = string(b)
	}

	entry := &models.AuditLog{
		UserID:    actor.UserID,
		CompanyID: actor.CompanyID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		EntityKey: key,
		Details:   text,
		IPAddress: actor.IP,
		UserAgent: actor.UserAgent,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// List retrieves audit logs of the actor's company
func (s *AuditService) List(ctx context.Context, actor Actor, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	if query == nil {
		query = repository.NewListQuery()
	}
	return s.repos.Audit.List(ctx, actor.CompanyID, query)
}
