package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sjperalta/fintera-posting/internal/jobs"
	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// StatisticsFilter narrows the dashboard rollups
type StatisticsFilter struct {
	From       *time.Time `form:"from" time_format:"2006-01-02"`
	To         *time.Time `form:"to" time_format:"2006-01-02"`
	CustomerID *uint      `form:"customer_id"`
	AsOf       *time.Time `form:"as_of" time_format:"2006-01-02"`
}

type StatisticsService struct {
	repos    *repository.Repositories
	leaseSvc *LeaseRevenueService
	worker   *jobs.Worker
	ttl      time.Duration
}

func NewStatisticsService(repos *repository.Repositories, leaseSvc *LeaseRevenueService, worker *jobs.Worker, ttl time.Duration) *StatisticsService {
	return &StatisticsService{
		repos:    repos,
		leaseSvc: leaseSvc,
		worker:   worker,
		ttl:      ttl,
	}
}

// Get returns the rollups for the filter, from cache when a fresh copy exists
func (s *StatisticsService) Get(ctx context.Context, actor Actor, filter StatisticsFilter) (*ledger.Statistics, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, ledger.Errorf(ledger.CodeInvalidPeriod, "to %s is before from %s",
			filter.To.Format(time.DateOnly), filter.From.Format(time.DateOnly))
	}
	asOf := today()
	if filter.AsOf != nil {
		asOf = dateOnly(*filter.AsOf)
	}
	key := cacheKey(filter, asOf)

	cached, err := s.repos.Statistics.GetCache(ctx, key, actor.CompanyID)
	switch {
	case err == nil:
		var st ledger.Statistics
		if err := json.Unmarshal(cached.Data, &st); err == nil {
			return &st, nil
		}
		logger.Warn("Discarding unreadable statistics cache", "key", key, "company_id", actor.CompanyID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		logger.Warn("Statistics cache lookup failed", "error", err)
	}

	st, err := s.compute(ctx, actor, filter, asOf)
	if err != nil {
		return nil, err
	}

	store := func(ctx context.Context) error {
		return s.repos.Statistics.SetCache(ctx, key, actor.CompanyID, st, s.ttl)
	}
	if s.worker != nil {
		s.worker.Enqueue("statistics-cache-store", store)
	} else if err := store(ctx); err != nil {
		logger.Warn("Failed to cache statistics", "error", err)
	}
	return st, nil
}

// PurgeExpired deletes expired cache rows
func (s *StatisticsService) PurgeExpired(ctx context.Context) error {
	n, err := s.repos.Statistics.CleanExpiredCache(ctx)
	if err != nil {
		return fmt.Errorf("purge statistics cache: %w", err)
	}
	if n > 0 {
		logger.Info("Purged expired statistics", "rows", n)
	}
	return nil
}

func (s *StatisticsService) compute(ctx context.Context, actor Actor, filter StatisticsFilter, asOf time.Time) (*ledger.Statistics, error) {
	rf := repository.RangeFilter{
		CompanyID:  actor.CompanyID,
		From:       filter.From,
		To:         filter.To,
		CustomerID: filter.CustomerID,
	}

	invoices, err := s.repos.Invoice.List(ctx, rf)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	receipts, err := s.repos.Receipt.List(ctx, rf)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	legs, err := s.repos.Posting.ListBySourceType(ctx, actor.CompanyID, models.SourceLeaseRevenue, filter.From, filter.To)
	if err != nil {
		return nil, fmt.Errorf("list revenue postings: %w", err)
	}

	in := ledger.StatsInput{AsOf: asOf}
	for _, inv := range invoices {
		in.Invoices = append(in.Invoices, ledger.InvoiceFact{
			ID:          inv.ID,
			CustomerID:  inv.CustomerID,
			Status:      inv.Status,
			Total:       inv.TotalAmount,
			Paid:        inv.PaidAmount,
			Balance:     inv.BalanceAmount,
			DueDate:     inv.DueDate,
			Billable:    inv.IsBillable(),
			Outstanding: inv.AcceptsPayment(),
		})
	}
	for _, r := range receipts {
		in.Receipts = append(in.Receipts, ledger.ReceiptFact{
			ID:            r.ID,
			PaymentMethod: r.PaymentMethod,
			PaymentType:   r.PaymentType,
			Amount:        r.Amount,
			Allocated:     r.AllocatedAmount,
			IsPosted:      r.IsPosted,
		})
	}
	in.Revenue = revenueFacts(legs)

	// lease accruals need a bounded range
	if filter.From != nil && filter.To != nil && filter.CustomerID == nil {
		entries, err := s.leaseSvc.List(ctx, actor, *filter.From, *filter.To)
		if err != nil {
			return nil, err
		}
		in.LeaseEntries = entries
	}

	st := ledger.Aggregate(in)
	return &st, nil
}

// revenueFacts turns lease revenue vouchers into signed movements.
// Reversals take revenue back out.
func revenueFacts(legs []models.LedgerPosting) []ledger.RevenueFact {
	facts := make([]ledger.RevenueFact, 0, len(legs)/2)
	for _, leg := range legs {
		// the revenue account sits on the credit leg, and on the debit leg
		// of every odd level of reversal since its sides are swapped
		revenueSide, sign := models.SideCredit, int64(1)
		if models.UnpostsSource(leg.ReversalDepth) {
			revenueSide, sign = models.SideDebit, -1
		}
		if leg.Side != revenueSide {
			continue
		}
		facts = append(facts, ledger.RevenueFact{
			Date:   leg.PostingDate,
			Amount: leg.BaseAmount.Mul(decimal.NewFromInt(sign)),
		})
	}
	return facts
}

func cacheKey(f StatisticsFilter, asOf time.Time) string {
	day := func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format(time.DateOnly)
	}
	customer := "-"
	if f.CustomerID != nil {
		customer = fmt.Sprint(*f.CustomerID)
	}
	raw := fmt.Sprintf("stats|%s|%s|%s|%s", day(f.From), day(f.To), customer, asOf.Format(time.DateOnly))
	sum := sha1.Sum([]byte(raw))
	return "stats:" + hex.EncodeToString(sum[:])
}
