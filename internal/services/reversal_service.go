package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/locks"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/statemachine"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

type ReversalService struct {
	repos    *repository.Repositories
	locker   locks.Locker
	auditSvc *AuditService
}

func NewReversalService(repos *repository.Repositories, locker locks.Locker, auditSvc *AuditService) *ReversalService {
	return &ReversalService{
		repos:    repos,
		locker:   locker,
		auditSvc: auditSvc,
	}
}

// Reverse writes a new voucher with the legs of voucherNo swapped and marks
// the original as reversed. Reversing a posting returns its source to
// unposted; reversing a reversal posts the source again under the new number.
func (s *ReversalService) Reverse(ctx context.Context, actor Actor, voucherNo, reason string) (*models.Voucher, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ledger.Errorf(ledger.CodeEmptyReason, "a reason is required to reverse %s", voucherNo)
	}

	// the source of a voucher never changes, so the lock key can be read
	// before the lock is held
	legs, err := s.repos.Posting.FindByVoucher(ctx, actor.CompanyID, voucherNo)
	if err != nil {
		return nil, fmt.Errorf("find voucher %s: %w", voucherNo, err)
	}
	if len(legs) == 0 {
		return nil, ledger.Errorf(ledger.CodeNotFound, "voucher %s not found", voucherNo)
	}

	release, err := s.locker.Acquire(ctx, locks.SourceKey(actor.CompanyID, legs[0].SourceType, legs[0].SourceID))
	if err != nil {
		return nil, err
	}
	defer release()

	var reversal models.Voucher
	err = s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		original, err := verifyVoucher(ctx, tx, actor.CompanyID, voucherNo)
		if err != nil {
			return err
		}
		if original.ReversedBy != nil {
			return ledger.Errorf(ledger.CodeAlreadyReversed, "voucher %s is already reversed by %s", voucherNo, *original.ReversedBy)
		}

		depth := original.ReversalDepth + 1
		kind := models.ReversalKind(depth)

		n, err := tx.Sequence.Next(ctx, actor.CompanyID, actor.FiscalYearID, models.PrefixReversal)
		if err != nil {
			return fmt.Errorf("reserve reversal number: %w", err)
		}
		reversalNo := models.FormatVoucherNo(models.PrefixReversal, actor.FiscalYearID, n)

		template := original.Debit
		template.ID = 0
		template.CreatedAt = time.Time{}
		template.FiscalYearID = actor.FiscalYearID
		template.VoucherNo = reversalNo
		template.PostingDate = today()
		template.Narration = fmt.Sprintf("Reversal of %s: %s", voucherNo, reason)
		template.Kind = kind
		template.ReversalDepth = depth
		template.ReversalOf = &voucherNo
		template.ReversedBy = nil
		template.CreatedBy = actor.UserID
		if err := tx.Posting.CreateLegs(ctx, voucherLegs(template, original.Credit.AccountID, original.Debit.AccountID)); err != nil {
			return writeLegsError(reversalNo, err)
		}

		marked, err := tx.Posting.MarkReversed(ctx, actor.CompanyID, voucherNo, reversalNo)
		if err != nil {
			return fmt.Errorf("mark %s reversed: %w", voucherNo, err)
		}
		switch marked {
		case 2:
		case 0:
			return ledger.Errorf(ledger.CodeAlreadyReversed, "voucher %s is already reversed", voucherNo)
		default:
			return integrity("voucher %s had %d legs marked reversed", voucherNo, marked)
		}

		if models.UnpostsSource(depth) {
			err = markSourceUnposted(ctx, tx, actor, original)
		} else {
			err = markSourcePosted(ctx, tx, actor, template)
		}
		if err != nil {
			return err
		}

		if err := s.auditSvc.Record(ctx, tx.Audit, actor, models.AuditActionReverse, "Voucher", original.SourceID, voucherNo, map[string]any{
			"reversal_no": reversalNo,
			"kind":        kind,
			"depth":       depth,
			"reason":      reason,
			"source_type": original.SourceType,
		}); err != nil {
			return err
		}

		reversal, err = verifyVoucher(ctx, tx, actor.CompanyID, reversalNo)
		if err != nil {
			return err
		}
		return tx.Statistics.InvalidateCompany(ctx, actor.CompanyID)
	})
	if err != nil {
		logFailure("Reversal failed", err, "voucher_no", voucherNo)
		return nil, err
	}

	logger.Info("Voucher reversed", "voucher_no", voucherNo, "reversal_no", reversal.VoucherNo,
		"kind", reversal.Kind, "depth", reversal.ReversalDepth, "user_id", actor.UserID)
	return &reversal, nil
}

// markSourceUnposted returns the source of v to unposted. It fails with
// NotPosted unless the source is currently posted under v.
func markSourceUnposted(ctx context.Context, tx *repository.Repositories, actor Actor, v models.Voucher) error {
	var (
		ok  bool
		err error
	)
	switch v.SourceType {
	case models.SourceReceipt:
		ok, err = tx.Receipt.MarkUnposted(ctx, actor.CompanyID, v.SourceID, v.VoucherNo)
	case models.SourceInvoice:
		invoice, ferr := tx.Invoice.FindByID(ctx, actor.CompanyID, v.SourceID)
		if ferr != nil {
			return notFound(ferr, "invoice", v.SourceID)
		}
		if !invoice.IsPosted || deref(invoice.VoucherNo) != v.VoucherNo {
			return ledger.Errorf(ledger.CodeNotPosted, "invoice %d is not posted under %s", invoice.ID, v.VoucherNo)
		}
		if ferr := statemachine.NewInvoiceFSM(invoice).Unpost(ctx); ferr != nil {
			return ferr
		}
		ok, err = tx.Invoice.MarkUnposted(ctx, actor.CompanyID, v.SourceID, v.VoucherNo)
	case models.SourceLeaseRevenue:
		marker, ferr := tx.LeaseRevenue.FindByVoucher(ctx, actor.CompanyID, v.VoucherNo)
		if ferr != nil {
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return ledger.Errorf(ledger.CodeNotPosted, "no lease revenue is posted under %s", v.VoucherNo)
			}
			return fmt.Errorf("find lease revenue marker: %w", ferr)
		}
		ok, err = tx.LeaseRevenue.MarkUnposted(ctx, marker.ID, v.VoucherNo)
	default:
		return ledger.Errorf(ledger.CodeInvalidSource, "unknown source type %q", v.SourceType)
	}
	if err != nil {
		return fmt.Errorf("mark %s %d unposted: %w", v.SourceType, v.SourceID, err)
	}
	if !ok {
		return ledger.Errorf(ledger.CodeNotPosted, "%s %d is not posted under %s", v.SourceType, v.SourceID, v.VoucherNo)
	}
	return nil
}
