package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
)

type LeaseRevenueService struct {
	repos   *repository.Repositories
	bulkSvc *BulkService
}

func NewLeaseRevenueService(repos *repository.Repositories, bulkSvc *BulkService) *LeaseRevenueService {
	return &LeaseRevenueService{
		repos:   repos,
		bulkSvc: bulkSvc,
	}
}

// List computes the revenue each leased unit earns in [from, to] and marks
// the entries already posted.
func (s *LeaseRevenueService) List(ctx context.Context, actor Actor, from, to time.Time) ([]ledger.LeaseRevenueEntry, error) {
	entries, _, err := s.entries(ctx, actor, from, to)
	return entries, err
}

// PostUnposted posts every unposted entry of the range as one batch
func (s *LeaseRevenueService) PostUnposted(ctx context.Context, actor Actor, from, to time.Time) (*BulkResult, error) {
	entries, units, err := s.entries(ctx, actor, from, to)
	if err != nil {
		return nil, err
	}

	items := make([]BulkItem, 0, len(entries))
	for _, e := range entries {
		if e.IsPosted || !e.PostingAmount.IsPositive() {
			continue
		}
		unit := units[e.ContractUnitID]
		start, end := e.PeriodStart, e.PeriodEnd
		items = append(items, BulkItem{
			ItemID: fmt.Sprintf("%s:%s", e.LeaseNumber, start.Format(time.DateOnly)),
			PostRequest: PostRequest{
				SourceType:      models.SourceLeaseRevenue,
				SourceID:        unit.ID,
				PostingDate:     end,
				DebitAccountID:  unit.ReceivableAccountID,
				CreditAccountID: unit.RevenueAccountID,
				Amount:          e.PostingAmount,
				Narration: fmt.Sprintf("Lease revenue %s %s to %s", e.LeaseNumber,
					start.Format(time.DateOnly), end.Format(time.DateOnly)),
				PeriodStart: &start,
				PeriodEnd:   &end,
			},
		})
	}
	return s.bulkSvc.Apply(ctx, actor, BulkPost, items)
}

func (s *LeaseRevenueService) entries(ctx context.Context, actor Actor, from, to time.Time) ([]ledger.LeaseRevenueEntry, map[uint]models.ContractUnit, error) {
	if err := ledger.ValidatePeriod(&from, &to); err != nil {
		return nil, nil, err
	}
	from, to = dateOnly(from), dateOnly(to)

	units, err := s.repos.ContractUnit.ListOverlapping(ctx, actor.CompanyID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list contract units: %w", err)
	}
	ids := make([]uint, 0, len(units))
	byID := make(map[uint]models.ContractUnit, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
		byID[u.ID] = u
	}

	posted, err := s.repos.LeaseRevenue.PostedRevenue(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("sum posted lease revenue: %w", err)
	}
	markers, err := s.repos.LeaseRevenue.ListByUnits(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("list lease revenue markers: %w", err)
	}
	type period struct {
		unit       uint
		start, end string
	}
	marked := make(map[period]models.LeaseRevenuePosting, len(markers))
	for _, m := range markers {
		marked[period{m.ContractUnitID, m.PeriodStart.Format(time.DateOnly), m.PeriodEnd.Format(time.DateOnly)}] = m
	}

	entries := make([]ledger.LeaseRevenueEntry, 0, len(units))
	for _, u := range units {
		if u.YearlyRent == nil {
			continue
		}
		entry, ok := ledger.ComputeLeaseEntry(u.LeaseTerm(), from, to, posted[u.ID])
		if !ok {
			continue
		}
		if m, found := marked[period{u.ID, entry.PeriodStart.Format(time.DateOnly), entry.PeriodEnd.Format(time.DateOnly)}]; found && m.IsPosted {
			entry.IsPosted = true
			entry.VoucherNo = deref(m.VoucherNo)
		}
		entries = append(entries, entry)
	}
	return entries, byID, nil
}
