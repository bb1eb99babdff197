package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/statemachine"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// ValidateAllocationRequest checks a distribution without writing anything.
// With ReceiptID set the stored unallocated amount is authoritative and
// ReceiptAmount is only compared against it.
type ValidateAllocationRequest struct {
	ReceiptID     *uint                   `json:"receipt_id"`
	ReceiptAmount decimal.Decimal         `json:"receipt_amount"`
	Allocations   []ledger.AllocationLine `json:"allocations"`
}

// AllocationResult reports an applied distribution
type AllocationResult struct {
	ReceiptID        uint                `json:"receipt_id"`
	AllocatedNow     decimal.Decimal     `json:"allocated_now"`
	ReceiptAllocated decimal.Decimal     `json:"receipt_allocated"`
	Unallocated      decimal.Decimal     `json:"unallocated"`
	Allocations      []models.Allocation `json:"allocations"`
	Invoices         []models.Invoice    `json:"invoices"`
	Warnings         []string            `json:"warnings"`
}

type AllocationService struct {
	repos    *repository.Repositories
	auditSvc *AuditService
}

func NewAllocationService(repos *repository.Repositories, auditSvc *AuditService) *AllocationService {
	return &AllocationService{
		repos:    repos,
		auditSvc: auditSvc,
	}
}

// Validate runs the allocation rules against current invoice balances
func (s *AllocationService) Validate(ctx context.Context, actor Actor, req ValidateAllocationRequest) (ledger.AllocationCheck, error) {
	available := req.ReceiptAmount
	var warnings []string
	if req.ReceiptID != nil {
		receipt, err := s.repos.Receipt.FindByID(ctx, actor.CompanyID, *req.ReceiptID)
		if err != nil {
			return ledger.AllocationCheck{}, notFound(err, "receipt", *req.ReceiptID)
		}
		available = receipt.Unallocated()
		if !req.ReceiptAmount.IsZero() && !req.ReceiptAmount.Equal(available) {
			warnings = append(warnings, fmt.Sprintf("receipt amount %s differs from the %s still unallocated on receipt %d",
				req.ReceiptAmount.StringFixed(2), available.StringFixed(2), receipt.ID))
		}
	}

	invoices, err := s.repos.Invoice.FindByIDs(ctx, actor.CompanyID, lineInvoiceIDs(req.Allocations))
	if err != nil {
		return ledger.AllocationCheck{}, fmt.Errorf("load invoices: %w", err)
	}

	check := ledger.ValidateAllocation(available, req.Allocations, invoiceLookup(invoices))
	check.Warnings = append(check.Warnings, warnings...)
	return check, nil
}

// Allocate applies a distribution of one receipt across invoices, all or
// nothing. Balances are re-read under row locks, so a caller's earlier
// validation is never trusted.
func (s *AllocationService) Allocate(ctx context.Context, actor Actor, receiptID uint, lines []ledger.AllocationLine) (*AllocationResult, error) {
	if len(lines) == 0 {
		return nil, ledger.Errorf(ledger.CodeInvalidInput, "at least one allocation line is required")
	}

	var result AllocationResult
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		receipt, err := tx.Receipt.Lock(ctx, actor.CompanyID, receiptID)
		if err != nil {
			return notFound(err, "receipt", receiptID)
		}
		if receipt.Status == models.ReceiptStatusBounced {
			return ledger.Errorf(ledger.CodeInvalidStatus, "receipt %d bounced and cannot be allocated", receipt.ID)
		}

		invoices, err := tx.Invoice.LockByIDs(ctx, actor.CompanyID, lineInvoiceIDs(lines))
		if err != nil {
			return fmt.Errorf("lock invoices: %w", err)
		}

		check := ledger.ValidateAllocation(receipt.Unallocated(), lines, invoiceLookup(invoices))
		if err := check.Err(); err != nil {
			return err
		}

		byID := make(map[uint]*models.Invoice, len(invoices))
		for i := range invoices {
			byID[invoices[i].ID] = &invoices[i]
		}

		allocations := make([]models.Allocation, 0, len(lines))
		for _, line := range lines {
			inv := byID[line.InvoiceID]
			inv.PaidAmount = inv.PaidAmount.Add(line.Amount)
			inv.BalanceAmount = inv.BalanceAmount.Sub(line.Amount)
			allocations = append(allocations, models.Allocation{
				ReceiptID: receipt.ID,
				InvoiceID: inv.ID,
				Amount:    line.Amount,
				CreatedBy: actor.UserID,
			})
		}

		for i := range invoices {
			inv := &invoices[i]
			if !inv.BalanceConsistent() || inv.BalanceAmount.IsNegative() {
				return integrity("invoice %d balance %s does not match total %s less paid %s",
					inv.ID, inv.BalanceAmount.StringFixed(2), inv.TotalAmount.StringFixed(2), inv.PaidAmount.StringFixed(2))
			}
			if err := statemachine.NewInvoiceFSM(inv).ApplyPayment(ctx); err != nil {
				return err
			}
			if err := tx.Invoice.UpdateVersioned(ctx, inv, map[string]interface{}{
				"paid_amount":    inv.PaidAmount,
				"balance_amount": inv.BalanceAmount,
				"status":         inv.Status,
			}); err != nil {
				return err
			}
		}

		if err := tx.Allocation.CreateBatch(ctx, allocations); err != nil {
			return fmt.Errorf("write allocations: %w", err)
		}

		receipt.AllocatedAmount = receipt.AllocatedAmount.Add(check.Total)
		if receipt.AllocatedAmount.GreaterThan(receipt.Amount) {
			return integrity("receipt %d allocated %s exceeds amount %s",
				receipt.ID, receipt.AllocatedAmount.StringFixed(2), receipt.Amount.StringFixed(2))
		}
		if err := tx.Receipt.UpdateVersioned(ctx, receipt, map[string]interface{}{
			"allocated_amount": receipt.AllocatedAmount,
		}); err != nil {
			return err
		}

		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionAllocate, "Receipt", receipt.ID, receipt.ReceiptNumber, map[string]any{
			"total": check.Total.StringFixed(2),
			"lines": lines,
		}); err != nil {
			return err
		}

		result = AllocationResult{
			ReceiptID:        receipt.ID,
			AllocatedNow:     check.Total,
			ReceiptAllocated: receipt.AllocatedAmount,
			Unallocated:      receipt.Unallocated(),
			Allocations:      allocations,
			Invoices:         invoices,
			Warnings:         check.Warnings,
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		logFailure("Allocation failed", err, "receipt_id", receiptID)
		return nil, err
	}

	logger.Info("Receipt allocated", "receipt_id", receiptID, "amount", result.AllocatedNow.StringFixed(2),
		"invoices", len(result.Invoices), "user_id", actor.UserID)
	return &result, nil
}

// List returns the allocations recorded against a receipt
func (s *AllocationService) List(ctx context.Context, actor Actor, receiptID uint) ([]models.Allocation, error) {
	if _, err := s.repos.Receipt.FindByID(ctx, actor.CompanyID, receiptID); err != nil {
		return nil, notFound(err, "receipt", receiptID)
	}
	return s.repos.Allocation.FindByReceipt(ctx, receiptID)
}

// lineInvoiceIDs returns the distinct non-zero invoice ids in ascending order
func lineInvoiceIDs(lines []ledger.AllocationLine) []uint {
	seen := make(map[uint]bool, len(lines))
	ids := make([]uint, 0, len(lines))
	for _, l := range lines {
		if l.InvoiceID == 0 || seen[l.InvoiceID] {
			continue
		}
		seen[l.InvoiceID] = true
		ids = append(ids, l.InvoiceID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func invoiceLookup(invoices []models.Invoice) ledger.InvoiceLookup {
	byID := make(map[uint]ledger.InvoiceBalance, len(invoices))
	for i := range invoices {
		byID[invoices[i].ID] = ledger.InvoiceBalance{
			Balance: invoices[i].BalanceAmount,
			Payable: invoices[i].AcceptsPayment(),
		}
	}
	return func(id uint) (ledger.InvoiceBalance, bool) {
		b, ok := byID[id]
		return b, ok
	}
}
