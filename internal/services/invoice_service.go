package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/statemachine"
)

type CreateInvoiceRequest struct {
	CustomerID     uint            `json:"customer_id" binding:"required"`
	InvoiceNumber  string          `json:"invoice_number" binding:"required"`
	ContractUnitID *uint           `json:"contract_unit_id"`
	PeriodStart    *time.Time      `json:"period_start"`
	PeriodEnd      *time.Time      `json:"period_end"`
	DueDate        time.Time       `json:"due_date" binding:"required"`
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

type InvoiceService struct {
	repos    *repository.Repositories
	auditSvc *AuditService
}

func NewInvoiceService(repos *repository.Repositories, auditSvc *AuditService) *InvoiceService {
	return &InvoiceService{
		repos:    repos,
		auditSvc: auditSvc,
	}
}

func (s *InvoiceService) Get(ctx context.Context, actor Actor, id uint) (*models.Invoice, error) {
	invoice, err := s.repos.Invoice.FindByID(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, notFound(err, "invoice", id)
	}
	return invoice, nil
}

// Create stores a draft invoice whose balance is its full total
func (s *InvoiceService) Create(ctx context.Context, actor Actor, req CreateInvoiceRequest) (*models.Invoice, error) {
	if req.GrossAmount.IsNegative() || req.TaxAmount.IsNegative() || req.DiscountAmount.IsNegative() {
		return nil, ledger.Errorf(ledger.CodeInvalidInput, "invoice amounts cannot be negative")
	}
	total := req.GrossAmount.Add(req.TaxAmount).Sub(req.DiscountAmount).Round(2)
	if !total.IsPositive() {
		return nil, ledger.Errorf(ledger.CodeNonPositiveAmount, "invoice total %s must be greater than zero", total.StringFixed(2))
	}
	if req.PeriodStart != nil || req.PeriodEnd != nil {
		if err := ledger.ValidatePeriod(req.PeriodStart, req.PeriodEnd); err != nil {
			return nil, err
		}
	}

	invoice := &models.Invoice{
		CompanyID:      actor.CompanyID,
		ContractUnitID: req.ContractUnitID,
		CustomerID:     req.CustomerID,
		InvoiceNumber:  req.InvoiceNumber,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		DueDate:        dateOnly(req.DueDate),
		GrossAmount:    req.GrossAmount.Round(2),
		TaxAmount:      req.TaxAmount.Round(2),
		DiscountAmount: req.DiscountAmount.Round(2),
		TotalAmount:    total,
		PaidAmount:     decimal.Zero,
		BalanceAmount:  total,
		Status:         models.InvoiceStatusDraft,
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Invoice.Create(ctx, invoice); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledger.Errorf(ledger.CodeInvalidInput, "invoice number %s already exists", req.InvoiceNumber)
			}
			return fmt.Errorf("create invoice: %w", err)
		}
		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionCreate, "Invoice", invoice.ID, invoice.InvoiceNumber,
			fmt.Sprintf("Invoice %s for %s", invoice.InvoiceNumber, total.StringFixed(2))); err != nil {
			return err
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// ChangeStatus cancels or voids an invoice. Other statuses are reached
// through posting and allocation only.
func (s *InvoiceService) ChangeStatus(ctx context.Context, actor Actor, id uint, status string) (*models.Invoice, error) {
	var invoice *models.Invoice
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		locked, err := tx.Invoice.LockByIDs(ctx, actor.CompanyID, []uint{id})
		if err != nil {
			return fmt.Errorf("lock invoice %d: %w", id, err)
		}
		if len(locked) == 0 {
			return ledger.Errorf(ledger.CodeNotFound, "invoice %d not found", id)
		}
		invoice = &locked[0]
		if invoice.Status == status {
			return nil
		}

		machine := statemachine.NewInvoiceFSM(invoice)
		switch status {
		case models.InvoiceStatusCancelled:
			err = machine.Cancel(ctx)
		case models.InvoiceStatusVoid:
			err = machine.Void(ctx)
		default:
			err = ledger.Errorf(ledger.CodeInvalidStatus, "invoice status cannot be set to %q directly", status)
		}
		if err != nil {
			return err
		}

		if err := tx.Invoice.UpdateVersioned(ctx, invoice, map[string]interface{}{"status": invoice.Status}); err != nil {
			return err
		}
		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionUpdate, "Invoice", invoice.ID, invoice.InvoiceNumber,
			map[string]string{"status": invoice.Status}); err != nil {
			return err
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}
