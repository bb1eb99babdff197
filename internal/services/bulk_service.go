package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// Bulk operations
const (
	BulkPost           = "post"
	BulkChangeStatus   = "change_status"
	BulkSetDepositInfo = "set_deposit_info"
)

// BulkItem is one record of a batch. Post uses the embedded request; the
// other operations only read the source and their own fields.
type BulkItem struct {
	ItemID string `json:"item_id"`
	PostRequest
	Status           string     `json:"status,omitempty"`
	DepositDate      *time.Time `json:"deposit_date,omitempty"`
	BankName         *string    `json:"bank_name,omitempty"`
	DepositReference *string    `json:"deposit_reference,omitempty"`
}

func (i BulkItem) key() string {
	if i.ItemID != "" {
		return i.ItemID
	}
	return fmt.Sprintf("%s:%d", i.SourceType, i.SourceID)
}

// ItemError reports why one item of a batch failed
type ItemError struct {
	ItemID string `json:"item_id"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

// BulkResult summarizes a batch. UpdatedCount + FailedCount is always the
// number of items submitted.
type BulkResult struct {
	BatchID       string      `json:"batch_id"`
	Operation     string      `json:"operation"`
	UpdatedCount  int         `json:"updated_count"`
	FailedCount   int         `json:"failed_count"`
	PerItemErrors []ItemError `json:"per_item_errors"`
}

type BulkService struct {
	repos      *repository.Repositories
	postingSvc *PostingService
	receiptSvc *ReceiptService
	invoiceSvc *InvoiceService
	auditSvc   *AuditService
}

func NewBulkService(repos *repository.Repositories, postingSvc *PostingService, receiptSvc *ReceiptService, invoiceSvc *InvoiceService, auditSvc *AuditService) *BulkService {
	return &BulkService{
		repos:      repos,
		postingSvc: postingSvc,
		receiptSvc: receiptSvc,
		invoiceSvc: invoiceSvc,
		auditSvc:   auditSvc,
	}
}

// Apply runs operation over items one at a time, each in its own
// transaction. A failing item never stops the batch. Once ctx is done no
// further item is started and the rest are reported as Cancelled.
func (s *BulkService) Apply(ctx context.Context, actor Actor, operation string, items []BulkItem) (*BulkResult, error) {
	run, err := s.operation(operation)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{
		BatchID:       uuid.New().String(),
		Operation:     operation,
		PerItemErrors: []ItemError{},
	}

	for i, item := range items {
		if ctx.Err() != nil {
			for _, rest := range items[i:] {
				result.FailedCount++
				result.PerItemErrors = append(result.PerItemErrors, ItemError{
					ItemID: rest.key(),
					Code:   string(ledger.CodeCancelled),
					Error:  "batch cancelled before the item was submitted",
				})
			}
			break
		}

		if err := run(ctx, actor, item); err != nil {
			result.FailedCount++
			result.PerItemErrors = append(result.PerItemErrors, itemError(item.key(), err))
			continue
		}
		result.UpdatedCount++
	}

	// the batch summary is written even when the caller went away
	auditCtx := context.WithoutCancel(ctx)
	if err := s.auditSvc.Record(auditCtx, s.repos.Audit, actor, models.AuditActionBulk, "Batch", 0, result.BatchID, result); err != nil {
		logger.Error("Failed to audit bulk batch", "batch_id", result.BatchID, "error", err)
	}

	logger.Info("Bulk operation finished", "batch_id", result.BatchID, "operation", operation,
		"updated", result.UpdatedCount, "failed", result.FailedCount, "user_id", actor.UserID)
	return result, nil
}

type bulkFunc func(ctx context.Context, actor Actor, item BulkItem) error

func (s *BulkService) operation(name string) (bulkFunc, error) {
	switch name {
	case BulkPost:
		return func(ctx context.Context, actor Actor, item BulkItem) error {
			_, err := s.postingSvc.Post(ctx, actor, item.PostRequest)
			return err
		}, nil

	case BulkChangeStatus:
		return func(ctx context.Context, actor Actor, item BulkItem) error {
			var err error
			switch item.SourceType {
			case models.SourceReceipt:
				_, err = s.receiptSvc.ChangeStatus(ctx, actor, item.SourceID, item.Status)
			case models.SourceInvoice:
				_, err = s.invoiceSvc.ChangeStatus(ctx, actor, item.SourceID, item.Status)
			default:
				err = ledger.Errorf(ledger.CodeInvalidSource, "status of %q records cannot be changed", item.SourceType)
			}
			return err
		}, nil

	case BulkSetDepositInfo:
		return func(ctx context.Context, actor Actor, item BulkItem) error {
			if item.SourceType != models.SourceReceipt {
				return ledger.Errorf(ledger.CodeInvalidSource, "deposit info applies to receipts, not %q", item.SourceType)
			}
			_, err := s.receiptSvc.SetDepositInfo(ctx, actor, item.SourceID, DepositInfo{
				DepositDate:      item.DepositDate,
				BankName:         item.BankName,
				DepositReference: item.DepositReference,
			})
			return err
		}, nil
	}
	return nil, ledger.Errorf(ledger.CodeInvalidOperation, "unknown bulk operation %q", name)
}

func itemError(itemID string, err error) ItemError {
	code := string(ledger.CodeOf(err))
	switch {
	case code != "":
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = string(ledger.CodeCancelled)
	default:
		code = "InternalError"
	}
	return ItemError{ItemID: itemID, Code: code, Error: err.Error()}
}
