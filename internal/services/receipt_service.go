package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/statemachine"
)

type CreateReceiptRequest struct {
	CustomerID      uint            `json:"customer_id" binding:"required"`
	ReceiptNumber   string          `json:"receipt_number" binding:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	PaymentType     string          `json:"payment_type" binding:"required"`
	BankName        *string         `json:"bank_name"`
	Reference       *string         `json:"reference"`
	ReceivedDate    time.Time       `json:"received_date"`
	DebitAccountID  uint            `json:"debit_account_id"`
	CreditAccountID uint            `json:"credit_account_id"`
	Currency        string          `json:"currency"`
	Narration       string          `json:"narration"`
}

// UpdateReceiptRequest changes a receipt. Financial fields are frozen once
// the receipt is posted.
type UpdateReceiptRequest struct {
	Amount          *decimal.Decimal `json:"amount"`
	PaymentMethod   *string          `json:"payment_method"`
	PaymentType     *string          `json:"payment_type"`
	ReceivedDate    *time.Time       `json:"received_date"`
	DebitAccountID  *uint            `json:"debit_account_id"`
	CreditAccountID *uint            `json:"credit_account_id"`
	Currency        *string          `json:"currency"`
	BankName        *string          `json:"bank_name"`
	Reference       *string          `json:"reference"`
	Narration       *string          `json:"narration"`
}

func (r UpdateReceiptRequest) touchesFinancials() bool {
	return r.Amount != nil || r.PaymentMethod != nil || r.PaymentType != nil || r.ReceivedDate != nil ||
		r.DebitAccountID != nil || r.CreditAccountID != nil || r.Currency != nil
}

// DepositInfo is the bank deposit of a receipt
type DepositInfo struct {
	DepositDate      *time.Time `json:"deposit_date"`
	BankName         *string    `json:"bank_name"`
	DepositReference *string    `json:"deposit_reference"`
}

type ReceiptService struct {
	repos        *repository.Repositories
	auditSvc     *AuditService
	baseCurrency string
}

func NewReceiptService(repos *repository.Repositories, auditSvc *AuditService, baseCurrency string) *ReceiptService {
	return &ReceiptService{
		repos:        repos,
		auditSvc:     auditSvc,
		baseCurrency: baseCurrency,
	}
}

// Get returns a receipt with its allocations
func (s *ReceiptService) Get(ctx context.Context, actor Actor, id uint) (*models.Receipt, error) {
	receipt, err := s.repos.Receipt.FindByIDWithAllocations(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, notFound(err, "receipt", id)
	}
	return receipt, nil
}

func (s *ReceiptService) Create(ctx context.Context, actor Actor, req CreateReceiptRequest) (*models.Receipt, error) {
	if !req.Amount.IsPositive() {
		return nil, ledger.Errorf(ledger.CodeNonPositiveAmount, "amount %s must be greater than zero", req.Amount.String())
	}
	if !models.ValidPaymentMethod(req.PaymentMethod) {
		return nil, ledger.Errorf(ledger.CodeInvalidInput, "unknown payment method %q", req.PaymentMethod)
	}
	if !models.ValidPaymentType(req.PaymentType) {
		return nil, ledger.Errorf(ledger.CodeInvalidInput, "unknown payment type %q", req.PaymentType)
	}
	if err := checkAccounts(ctx, s.repos.Account, actor.CompanyID, req.DebitAccountID, req.CreditAccountID); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.baseCurrency
	}
	received := dateOnly(req.ReceivedDate)
	if req.ReceivedDate.IsZero() {
		received = today()
	}

	receipt := &models.Receipt{
		CompanyID:       actor.CompanyID,
		CustomerID:      req.CustomerID,
		ReceiptNumber:   req.ReceiptNumber,
		Amount:          req.Amount.Round(2),
		AllocatedAmount: decimal.Zero,
		PaymentMethod:   req.PaymentMethod,
		PaymentType:     req.PaymentType,
		BankName:        req.BankName,
		Reference:       req.Reference,
		ReceivedDate:    received,
		Status:          models.ReceiptStatusReceived,
		DebitAccountID:  req.DebitAccountID,
		CreditAccountID: req.CreditAccountID,
		Currency:        currency,
		Narration:       req.Narration,
		CreatedBy:       actor.UserID,
	}

	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if err := tx.Receipt.Create(ctx, receipt); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledger.Errorf(ledger.CodeInvalidInput, "receipt number %s already exists", req.ReceiptNumber)
			}
			return fmt.Errorf("create receipt: %w", err)
		}
		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionCreate, "Receipt", receipt.ID, receipt.ReceiptNumber,
			fmt.Sprintf("Receipt %s for %s %s", receipt.ReceiptNumber, receipt.Amount.StringFixed(2), receipt.Currency)); err != nil {
			return err
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (s *ReceiptService) Update(ctx context.Context, actor Actor, id uint, req UpdateReceiptRequest) (*models.Receipt, error) {
	var receipt *models.Receipt
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		receipt, err = tx.Receipt.Lock(ctx, actor.CompanyID, id)
		if err != nil {
			return notFound(err, "receipt", id)
		}
		if receipt.IsPosted && req.touchesFinancials() {
			return ledger.Errorf(ledger.CodeReceiptLocked, "receipt %d is posted as %s; reverse it before changing amounts, accounts or dates",
				receipt.ID, deref(receipt.VoucherNo))
		}

		fields := map[string]interface{}{}
		if req.Amount != nil {
			if !req.Amount.IsPositive() {
				return ledger.Errorf(ledger.CodeNonPositiveAmount, "amount %s must be greater than zero", req.Amount.String())
			}
			if req.Amount.LessThan(receipt.AllocatedAmount) {
				return ledger.Errorf(ledger.CodeInvalidInput, "amount %s is below the %s already allocated",
					req.Amount.StringFixed(2), receipt.AllocatedAmount.StringFixed(2))
			}
			receipt.Amount = req.Amount.Round(2)
			fields["amount"] = receipt.Amount
		}
		if req.PaymentMethod != nil {
			if !models.ValidPaymentMethod(*req.PaymentMethod) {
				return ledger.Errorf(ledger.CodeInvalidInput, "unknown payment method %q", *req.PaymentMethod)
			}
			receipt.PaymentMethod = *req.PaymentMethod
			fields["payment_method"] = receipt.PaymentMethod
		}
		if req.PaymentType != nil {
			if !models.ValidPaymentType(*req.PaymentType) {
				return ledger.Errorf(ledger.CodeInvalidInput, "unknown payment type %q", *req.PaymentType)
			}
			receipt.PaymentType = *req.PaymentType
			fields["payment_type"] = receipt.PaymentType
		}
		if req.ReceivedDate != nil {
			receipt.ReceivedDate = dateOnly(*req.ReceivedDate)
			fields["received_date"] = receipt.ReceivedDate
		}
		if req.DebitAccountID != nil || req.CreditAccountID != nil {
			if req.DebitAccountID != nil {
				receipt.DebitAccountID = *req.DebitAccountID
			}
			if req.CreditAccountID != nil {
				receipt.CreditAccountID = *req.CreditAccountID
			}
			if err := checkAccounts(ctx, tx.Account, actor.CompanyID, receipt.DebitAccountID, receipt.CreditAccountID); err != nil {
				return err
			}
			fields["debit_account_id"] = receipt.DebitAccountID
			fields["credit_account_id"] = receipt.CreditAccountID
		}
		if req.Currency != nil {
			receipt.Currency = strings.ToUpper(*req.Currency)
			fields["currency"] = receipt.Currency
		}
		if req.BankName != nil {
			receipt.BankName = req.BankName
			fields["bank_name"] = *req.BankName
		}
		if req.Reference != nil {
			receipt.Reference = req.Reference
			fields["reference"] = *req.Reference
		}
		if req.Narration != nil {
			receipt.Narration = *req.Narration
			fields["narration"] = receipt.Narration
		}
		if len(fields) == 0 {
			return nil
		}

		if err := tx.Receipt.UpdateVersioned(ctx, receipt, fields); err != nil {
			return err
		}
		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionUpdate, "Receipt", receipt.ID, receipt.ReceiptNumber, changedColumns(fields)); err != nil {
			return err
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ChangeStatus moves a receipt through its banking states
func (s *ReceiptService) ChangeStatus(ctx context.Context, actor Actor, id uint, status string) (*models.Receipt, error) {
	if !models.ValidReceiptStatus(status) {
		return nil, ledger.Errorf(ledger.CodeInvalidStatus, "unknown receipt status %q", status)
	}
	return s.transition(ctx, actor, id, func(receipt *models.Receipt, fields map[string]interface{}) error {
		if receipt.Status == status {
			return nil
		}
		if status == models.ReceiptStatusBounced && receipt.AllocatedAmount.IsPositive() {
			return ledger.Errorf(ledger.CodeInvalidStatus, "receipt %d has %s allocated to invoices", receipt.ID, receipt.AllocatedAmount.StringFixed(2))
		}
		if err := statemachine.NewReceiptFSM(receipt).TransitionTo(ctx, status); err != nil {
			return err
		}
		fields["status"] = receipt.Status
		if status == models.ReceiptStatusCleared {
			cleared := today()
			receipt.ClearanceDate = &cleared
			fields["clearance_date"] = cleared
		}
		return nil
	})
}

// SetDepositInfo records the bank deposit and moves the receipt to deposited.
// Posted receipts accept it since no financial field changes.
func (s *ReceiptService) SetDepositInfo(ctx context.Context, actor Actor, id uint, info DepositInfo) (*models.Receipt, error) {
	if info.DepositDate == nil || info.DepositDate.IsZero() {
		return nil, ledger.Errorf(ledger.CodeInvalidInput, "deposit date is required")
	}
	return s.transition(ctx, actor, id, func(receipt *models.Receipt, fields map[string]interface{}) error {
		if receipt.Status != models.ReceiptStatusDeposited {
			if err := statemachine.NewReceiptFSM(receipt).Deposit(ctx); err != nil {
				return err
			}
			fields["status"] = receipt.Status
		}
		deposited := dateOnly(*info.DepositDate)
		receipt.DepositDate = &deposited
		fields["deposit_date"] = deposited
		if info.BankName != nil {
			receipt.BankName = info.BankName
			fields["bank_name"] = *info.BankName
		}
		if info.DepositReference != nil {
			receipt.DepositReference = info.DepositReference
			fields["deposit_reference"] = *info.DepositReference
		}
		return nil
	})
}

func (s *ReceiptService) transition(ctx context.Context, actor Actor, id uint, apply func(*models.Receipt, map[string]interface{}) error) (*models.Receipt, error) {
	var receipt *models.Receipt
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		receipt, err = tx.Receipt.Lock(ctx, actor.CompanyID, id)
		if err != nil {
			return notFound(err, "receipt", id)
		}
		fields := map[string]interface{}{}
		if err := apply(receipt, fields); err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Receipt.UpdateVersioned(ctx, receipt, fields); err != nil {
			return err
		}
		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionUpdate, "Receipt", receipt.ID, receipt.ReceiptNumber, changedColumns(fields)); err != nil {
			return err
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// changedColumns renders an update for the audit trail
func changedColumns(fields map[string]interface{}) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		switch t := v.(type) {
		case decimal.Decimal:
			out[k] = t.StringFixed(2)
		case time.Time:
			out[k] = t.Format(time.DateOnly)
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
