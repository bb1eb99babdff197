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
	"github.com/sjperalta/fintera-posting/internal/locks"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/statemachine"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// PostRequest asks for one source to be posted as a two-leg voucher
type PostRequest struct {
	SourceType      string          `json:"source_type" binding:"required"`
	SourceID        uint            `json:"source_id" binding:"required"`
	PostingDate     time.Time       `json:"posting_date"`
	DebitAccountID  uint            `json:"debit_account_id"`
	CreditAccountID uint            `json:"credit_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Narration       string          `json:"narration"`
	Reference       *string         `json:"reference,omitempty"`
	PeriodStart     *time.Time      `json:"period_start,omitempty"`
	PeriodEnd       *time.Time      `json:"period_end,omitempty"`
	Currency        string          `json:"currency,omitempty"`
}

type PostingService struct {
	repos        *repository.Repositories
	locker       locks.Locker
	auditSvc     *AuditService
	baseCurrency string
}

func NewPostingService(repos *repository.Repositories, locker locks.Locker, auditSvc *AuditService, baseCurrency string) *PostingService {
	return &PostingService{
		repos:        repos,
		locker:       locker,
		auditSvc:     auditSvc,
		baseCurrency: baseCurrency,
	}
}

// Post creates the voucher for a source at most once. A second post of the
// same source fails with AlreadyPosted and writes nothing.
func (s *PostingService) Post(ctx context.Context, actor Actor, req PostRequest) (*models.Voucher, error) {
	if err := s.checkRequest(ctx, actor, req); err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, locks.SourceKey(actor.CompanyID, req.SourceType, req.SourceID))
	if err != nil {
		return nil, err
	}
	defer release()

	postingDate := dateOnly(req.PostingDate)
	if req.PostingDate.IsZero() {
		postingDate = today()
	}

	var voucher models.Voucher
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		src, err := loadPostableSource(ctx, tx, actor, req)
		if err != nil {
			return err
		}

		currency := strings.ToUpper(req.Currency)
		if currency == "" {
			currency = src.currency
		}
		if currency == "" {
			currency = s.baseCurrency
		}
		rate, err := s.rateFor(ctx, tx, actor, currency, postingDate)
		if err != nil {
			return err
		}

		n, err := tx.Sequence.Next(ctx, actor.CompanyID, actor.FiscalYearID, models.PrefixJournal)
		if err != nil {
			return fmt.Errorf("reserve voucher number: %w", err)
		}
		voucherNo := models.FormatVoucherNo(models.PrefixJournal, actor.FiscalYearID, n)

		template := models.LedgerPosting{
			CompanyID:     actor.CompanyID,
			FiscalYearID:  actor.FiscalYearID,
			VoucherNo:     voucherNo,
			Amount:        req.Amount.Round(2),
			Currency:      currency,
			ExchangeRate:  rate,
			BaseAmount:    req.Amount.Mul(rate).Round(2),
			PostingDate:   postingDate,
			Narration:     req.Narration,
			SourceType:    req.SourceType,
			SourceID:      req.SourceID,
			PeriodStart:   src.periodStart,
			PeriodEnd:     src.periodEnd,
			Reference:     req.Reference,
			Kind:          models.KindPosting,
			RootVoucherNo: voucherNo,
			CreatedBy:     actor.UserID,
		}
		if err := tx.Posting.CreateLegs(ctx, voucherLegs(template, req.DebitAccountID, req.CreditAccountID)); err != nil {
			return writeLegsError(voucherNo, err)
		}

		if err := markSourcePosted(ctx, tx, actor, template); err != nil {
			return err
		}

		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionPost, sourceEntity(req.SourceType), req.SourceID, voucherNo, map[string]any{
			"amount":   template.Amount.StringFixed(2),
			"currency": currency,
			"debit":    req.DebitAccountID,
			"credit":   req.CreditAccountID,
		}); err != nil {
			return err
		}

		voucher, err = verifyVoucher(ctx, tx, actor.CompanyID, voucherNo)
		if err != nil {
			return err
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		logFailure("Posting failed", err, "source_type", req.SourceType, "source_id", req.SourceID)
		return nil, err
	}

	logger.Info("Voucher posted", "voucher_no", voucher.VoucherNo, "source_type", req.SourceType,
		"source_id", req.SourceID, "amount", voucher.Amount.StringFixed(2), "user_id", actor.UserID)
	return &voucher, nil
}

// GetVoucher returns both legs of a voucher
func (s *PostingService) GetVoucher(ctx context.Context, actor Actor, voucherNo string) (*models.Voucher, error) {
	legs, err := s.repos.Posting.FindByVoucher(ctx, actor.CompanyID, voucherNo)
	if err != nil {
		return nil, fmt.Errorf("find voucher %s: %w", voucherNo, err)
	}
	if len(legs) == 0 {
		return nil, ledger.Errorf(ledger.CodeNotFound, "voucher %s not found", voucherNo)
	}
	v, ok := models.NewVoucher(legs)
	if !ok {
		return nil, integrity("voucher %s has %d legs", voucherNo, len(legs))
	}
	return &v, nil
}

// History returns every leg of the chain a voucher belongs to, oldest first
func (s *PostingService) History(ctx context.Context, actor Actor, voucherNo string) ([]models.LedgerPosting, error) {
	v, err := s.GetVoucher(ctx, actor, voucherNo)
	if err != nil {
		return nil, err
	}
	return s.repos.Posting.FindChain(ctx, actor.CompanyID, v.RootVoucherNo)
}

// checkRequest runs every rule that needs no lock
func (s *PostingService) checkRequest(ctx context.Context, actor Actor, req PostRequest) error {
	if !models.ValidSourceType(req.SourceType) {
		return ledger.Errorf(ledger.CodeInvalidSource, "unknown source type %q", req.SourceType)
	}
	if req.SourceID == 0 {
		return ledger.Errorf(ledger.CodeInvalidSource, "source id is required")
	}
	if !req.Amount.IsPositive() {
		return ledger.Errorf(ledger.CodeNonPositiveAmount, "amount %s must be greater than zero", req.Amount.String())
	}
	if req.SourceType == models.SourceLeaseRevenue {
		if err := ledger.ValidatePeriod(req.PeriodStart, req.PeriodEnd); err != nil {
			return err
		}
	}
	return checkAccounts(ctx, s.repos.Account, actor.CompanyID, req.DebitAccountID, req.CreditAccountID)
}

// checkAccounts applies the pair rule and then requires both accounts to
// exist and be active in the company's chart.
func checkAccounts(ctx context.Context, repo repository.AccountRepository, companyID, debit, credit uint) error {
	if err := ledger.ValidateAccountPair(debit, credit); err != nil {
		return err
	}
	accounts, err := repo.FindByIDs(ctx, companyID, debit, credit)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	active := make(map[uint]bool, len(accounts))
	for _, a := range accounts {
		active[a.ID] = a.Active
	}
	for _, id := range []uint{debit, credit} {
		if !active[id] {
			return ledger.Errorf(ledger.CodeInvalidAccountPair, "account %d does not exist or is inactive", id)
		}
	}
	return nil
}

func (s *PostingService) rateFor(ctx context.Context, tx *repository.Repositories, actor Actor, currency string, on time.Time) (decimal.Decimal, error) {
	if currency == s.baseCurrency {
		return decimal.NewFromInt(1), nil
	}
	rate, err := tx.ExchangeRate.FindEffective(ctx, actor.CompanyID, currency, on)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ledger.Errorf(ledger.CodeNotFound, "no %s exchange rate effective on %s", currency, on.Format(time.DateOnly))
		}
		return decimal.Zero, fmt.Errorf("find exchange rate: %w", err)
	}
	return rate.Rate, nil
}

// postableSource is what the source says its voucher must carry. Zero
// account ids leave the choice to the caller.
type postableSource struct {
	currency    string
	amount      decimal.Decimal
	debit       uint
	credit      uint
	periodStart *time.Time
	periodEnd   *time.Time
}

// matches rejects a request whose amount, accounts or currency differ from
// the source being posted.
func (src postableSource) matches(req PostRequest) error {
	if !req.Amount.Round(2).Equal(src.amount.Round(2)) {
		return ledger.Errorf(ledger.CodeInvalidInput, "amount %s does not match %s %d amount %s",
			req.Amount.StringFixed(2), req.SourceType, req.SourceID, src.amount.StringFixed(2))
	}
	if src.debit != 0 && (req.DebitAccountID != src.debit || req.CreditAccountID != src.credit) {
		return ledger.Errorf(ledger.CodeInvalidInput, "accounts Dr %d Cr %d do not match %s %d accounts Dr %d Cr %d",
			req.DebitAccountID, req.CreditAccountID, req.SourceType, req.SourceID, src.debit, src.credit)
	}
	if req.Currency != "" && src.currency != "" && !strings.EqualFold(req.Currency, src.currency) {
		return ledger.Errorf(ledger.CodeInvalidInput, "currency %s does not match %s %d currency %s",
			strings.ToUpper(req.Currency), req.SourceType, req.SourceID, src.currency)
	}
	return nil
}

// loadPostableSource checks, inside the transaction, that the source exists,
// is not posted yet and agrees with the request.
func loadPostableSource(ctx context.Context, tx *repository.Repositories, actor Actor, req PostRequest) (postableSource, error) {
	src, err := findPostableSource(ctx, tx, actor, req)
	if err != nil {
		return postableSource{}, err
	}
	if err := src.matches(req); err != nil {
		return postableSource{}, err
	}
	return src, nil
}

func findPostableSource(ctx context.Context, tx *repository.Repositories, actor Actor, req PostRequest) (postableSource, error) {
	switch req.SourceType {
	case models.SourceReceipt:
		receipt, err := tx.Receipt.FindByID(ctx, actor.CompanyID, req.SourceID)
		if err != nil {
			return postableSource{}, notFound(err, "receipt", req.SourceID)
		}
		if receipt.IsPosted {
			return postableSource{}, ledger.Errorf(ledger.CodeAlreadyPosted, "receipt %d is already posted as %s", receipt.ID, deref(receipt.VoucherNo))
		}
		return postableSource{
			currency: receipt.Currency,
			amount:   receipt.Amount,
			debit:    receipt.DebitAccountID,
			credit:   receipt.CreditAccountID,
		}, nil

	case models.SourceInvoice:
		invoice, err := tx.Invoice.FindByID(ctx, actor.CompanyID, req.SourceID)
		if err != nil {
			return postableSource{}, notFound(err, "invoice", req.SourceID)
		}
		if invoice.IsPosted {
			return postableSource{}, ledger.Errorf(ledger.CodeAlreadyPosted, "invoice %d is already posted as %s", invoice.ID, deref(invoice.VoucherNo))
		}
		if err := statemachine.NewInvoiceFSM(invoice).Post(ctx); err != nil {
			return postableSource{}, err
		}
		src := postableSource{amount: invoice.TotalAmount}
		if invoice.ContractUnitID != nil {
			unit, err := tx.ContractUnit.FindByID(ctx, actor.CompanyID, *invoice.ContractUnitID)
			if err != nil {
				return postableSource{}, notFound(err, "contract unit", *invoice.ContractUnitID)
			}
			src.debit, src.credit = unit.ReceivableAccountID, unit.RevenueAccountID
		}
		return src, nil

	case models.SourceLeaseRevenue:
		unit, err := tx.ContractUnit.FindByID(ctx, actor.CompanyID, req.SourceID)
		if err != nil {
			return postableSource{}, notFound(err, "contract unit", req.SourceID)
		}
		entry, ok := ledger.ComputeLeaseEntry(unit.LeaseTerm(), *req.PeriodStart, *req.PeriodEnd, decimal.Zero)
		if !ok {
			return postableSource{}, ledger.Errorf(ledger.CodeInvalidPeriod, "period does not overlap lease %s", unit.LeaseNumber)
		}
		if err := checkLeasePeriodOpen(ctx, tx, unit, entry.PeriodStart, entry.PeriodEnd); err != nil {
			return postableSource{}, err
		}
		return postableSource{
			amount:      entry.PostingAmount,
			debit:       unit.ReceivableAccountID,
			credit:      unit.RevenueAccountID,
			periodStart: &entry.PeriodStart,
			periodEnd:   &entry.PeriodEnd,
		}, nil
	}
	return postableSource{}, ledger.Errorf(ledger.CodeInvalidSource, "unknown source type %q", req.SourceType)
}

// checkLeasePeriodOpen fails with AlreadyPosted when any day of [start, end]
// is already covered by posted revenue of the unit.
func checkLeasePeriodOpen(ctx context.Context, tx *repository.Repositories, unit *models.ContractUnit, start, end time.Time) error {
	marker, err := tx.LeaseRevenue.FindPostedOverlap(ctx, unit.ID, start, end)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find lease revenue marker: %w", err)
	}
	return ledger.Errorf(ledger.CodeAlreadyPosted, "lease %s %s..%s overlaps %s..%s posted as %s",
		unit.LeaseNumber, start.Format(time.DateOnly), end.Format(time.DateOnly),
		marker.PeriodStart.Format(time.DateOnly), marker.PeriodEnd.Format(time.DateOnly), deref(marker.VoucherNo))
}

// markSourcePosted flips the source flag with a conditional update. A lost
// race shows up as zero rows and becomes AlreadyPosted.
func markSourcePosted(ctx context.Context, tx *repository.Repositories, actor Actor, leg models.LedgerPosting) error {
	var (
		ok  bool
		err error
	)
	switch leg.SourceType {
	case models.SourceReceipt:
		ok, err = tx.Receipt.MarkPosted(ctx, actor.CompanyID, leg.SourceID, leg.VoucherNo)
	case models.SourceInvoice:
		invoice, ferr := tx.Invoice.FindByID(ctx, actor.CompanyID, leg.SourceID)
		if ferr != nil {
			return notFound(ferr, "invoice", leg.SourceID)
		}
		if ferr := statemachine.NewInvoiceFSM(invoice).Post(ctx); ferr != nil {
			return ferr
		}
		ok, err = tx.Invoice.MarkPosted(ctx, actor.CompanyID, leg.SourceID, leg.VoucherNo)
	case models.SourceLeaseRevenue:
		if leg.PeriodStart == nil || leg.PeriodEnd == nil {
			return integrity("lease revenue voucher %s has no period", leg.VoucherNo)
		}
		unit, ferr := tx.ContractUnit.FindByID(ctx, actor.CompanyID, leg.SourceID)
		if ferr != nil {
			return notFound(ferr, "contract unit", leg.SourceID)
		}
		if ferr := checkLeasePeriodOpen(ctx, tx, unit, *leg.PeriodStart, *leg.PeriodEnd); ferr != nil {
			return ferr
		}
		voucherNo := leg.VoucherNo
		ok, err = tx.LeaseRevenue.MarkPosted(ctx, &models.LeaseRevenuePosting{
			CompanyID:      actor.CompanyID,
			ContractUnitID: leg.SourceID,
			PeriodStart:    *leg.PeriodStart,
			PeriodEnd:      *leg.PeriodEnd,
			TotalLeaseDays: ledger.InclusiveDays(*leg.PeriodStart, *leg.PeriodEnd),
			RentPerDay:     ledger.RentPerDay(unit.LeaseTerm().YearlyRent),
			PostingAmount:  leg.Amount,
			VoucherNo:      &voucherNo,
		})
	default:
		return ledger.Errorf(ledger.CodeInvalidSource, "unknown source type %q", leg.SourceType)
	}
	if err != nil {
		return fmt.Errorf("mark %s %d posted: %w", leg.SourceType, leg.SourceID, err)
	}
	if !ok {
		return ledger.Errorf(ledger.CodeAlreadyPosted, "%s %d is already posted", leg.SourceType, leg.SourceID)
	}
	return nil
}

// writeLegsError codes a clash on the voucher number so callers can retry
func writeLegsError(voucherNo string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ledger.Errorf(ledger.CodeConcurrentModification, "voucher number %s is already taken", voucherNo)
	}
	return fmt.Errorf("write voucher %s: %w", voucherNo, err)
}

// voucherLegs builds the debit and credit rows of one voucher
func voucherLegs(template models.LedgerPosting, debitAccountID, creditAccountID uint) []models.LedgerPosting {
	debit := template
	debit.Side = models.SideDebit
	debit.AccountID = debitAccountID

	credit := template
	credit.Side = models.SideCredit
	credit.AccountID = creditAccountID

	return []models.LedgerPosting{debit, credit}
}

// verifyVoucher re-reads a voucher inside the transaction and fails it
// unless exactly two balanced legs were written.
func verifyVoucher(ctx context.Context, tx *repository.Repositories, companyID uint, voucherNo string) (models.Voucher, error) {
	legs, err := tx.Posting.FindByVoucher(ctx, companyID, voucherNo)
	if err != nil {
		return models.Voucher{}, fmt.Errorf("reload voucher %s: %w", voucherNo, err)
	}
	v, ok := models.NewVoucher(legs)
	if !ok || !v.Balanced() {
		return models.Voucher{}, integrity("voucher %s is not two balanced legs", voucherNo)
	}
	return v, nil
}

func sourceEntity(sourceType string) string {
	switch sourceType {
	case models.SourceReceipt:
		return "Receipt"
	case models.SourceInvoice:
		return "Invoice"
	case models.SourceLeaseRevenue:
		return "ContractUnit"
	}
	return sourceType
}

// logFailure logs integrity problems loudly and everything else as a warning
func logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err, "code", ledger.CodeOf(err))
	if ledger.CodeOf(err).Kind() == ledger.KindIntegrity || ledger.CodeOf(err) == "" {
		logger.Error(msg, args...)
		return
	}
	logger.Warn(msg, args...)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func today() time.Time {
	return dateOnly(time.Now())
}
