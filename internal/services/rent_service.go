package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// RentSyncResult is the outcome of synchronizing rent figures
type RentSyncResult struct {
	MonthlyRent  *decimal.Decimal      `json:"monthly_rent"`
	YearlyRent   *decimal.Decimal      `json:"yearly_rent"`
	Installments *int                  `json:"installments"`
	Derivation   ledger.RentDerivation `json:"derivation"`
	Unit         *models.ContractUnit  `json:"contract_unit,omitempty"`
}

type RentService struct {
	repos    *repository.Repositories
	auditSvc *AuditService
}

func NewRentService(repos *repository.Repositories, auditSvc *AuditService) *RentService {
	return &RentService{
		repos:    repos,
		auditSvc: auditSvc,
	}
}

// Sync derives missing rent figures without touching storage
func (s *RentService) Sync(terms ledger.RentTerms) RentSyncResult {
	out, how := ledger.SyncRent(terms)
	return RentSyncResult{
		MonthlyRent:  out.MonthlyRent,
		YearlyRent:   out.YearlyRent,
		Installments: out.Installments,
		Derivation:   how,
	}
}

// SyncContractUnit applies changes, if any, to the stored rent of a unit,
// synchronizes the three figures and persists them.
func (s *RentService) SyncContractUnit(ctx context.Context, actor Actor, unitID uint, changes *ledger.RentTerms) (*RentSyncResult, error) {
	var result RentSyncResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		unit, err := tx.ContractUnit.FindByID(ctx, actor.CompanyID, unitID)
		if err != nil {
			return notFound(err, "contract unit", unitID)
		}

		terms := unit.RentTerms()
		if changes != nil {
			if changes.MonthlyRent != nil {
				terms.MonthlyRent = changes.MonthlyRent
			}
			if changes.YearlyRent != nil {
				terms.YearlyRent = changes.YearlyRent
			}
			if changes.Installments != nil {
				terms.Installments = changes.Installments
			}
		}
		if err := checkRentTerms(terms); err != nil {
			return err
		}

		result = s.Sync(terms)
		unit.MonthlyRent = result.MonthlyRent
		unit.YearlyRent = result.YearlyRent
		unit.Installments = result.Installments
		result.Unit = unit

		if changes == nil && result.Derivation == ledger.RentUnchanged {
			return nil
		}
		if err := tx.ContractUnit.UpdateRent(ctx, unit); err != nil {
			return err
		}
		return s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionUpdate, "ContractUnit", unit.ID, unit.LeaseNumber, map[string]any{
			"derivation":   result.Derivation,
			"monthly_rent": formatRent(unit.MonthlyRent),
			"yearly_rent":  formatRent(unit.YearlyRent),
			"installments": unit.Installments,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Rent synchronized", "contract_unit_id", unitID, "derivation", result.Derivation, "user_id", actor.UserID)
	return &result, nil
}

func checkRentTerms(t ledger.RentTerms) error {
	if t.MonthlyRent != nil && t.MonthlyRent.IsNegative() {
		return ledger.Errorf(ledger.CodeInvalidInput, "monthly rent cannot be negative")
	}
	if t.YearlyRent != nil && t.YearlyRent.IsNegative() {
		return ledger.Errorf(ledger.CodeInvalidInput, "yearly rent cannot be negative")
	}
	if t.Installments != nil && *t.Installments < 0 {
		return ledger.Errorf(ledger.CodeInvalidInput, "installments cannot be negative")
	}
	return nil
}

func formatRent(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.StringFixed(2)
}
