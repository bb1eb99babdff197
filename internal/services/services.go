package services

import (
	"github.com/sjperalta/fintera-posting/internal/config"
	"github.com/sjperalta/fintera-posting/internal/jobs"
	"github.com/sjperalta/fintera-posting/internal/locks"
	"github.com/sjperalta/fintera-posting/internal/repository"
)

// Services holds all service instances
type Services struct {
	Audit        *AuditService
	Posting      *PostingService
	Reversal     *ReversalService
	Allocation   *AllocationService
	Bulk         *BulkService
	Receipt      *ReceiptService
	Invoice      *InvoiceService
	Rent         *RentService
	LeaseRevenue *LeaseRevenueService
	Statistics   *StatisticsService
	Job          *JobService
}

// NewServices creates all service instances. worker may be nil, in which
// case statistics are cached inline.
func NewServices(repos *repository.Repositories, locker locks.Locker, worker *jobs.Worker, cfg *config.Config) *Services {
	auditSvc := NewAuditService(repos)
	postingSvc := NewPostingService(repos, locker, auditSvc, cfg.BaseCurrency)
	receiptSvc := NewReceiptService(repos, auditSvc, cfg.BaseCurrency)
	invoiceSvc := NewInvoiceService(repos, auditSvc)
	bulkSvc := NewBulkService(repos, postingSvc, receiptSvc, invoiceSvc, auditSvc)
	leaseSvc := NewLeaseRevenueService(repos, bulkSvc)
	statsSvc := NewStatisticsService(repos, leaseSvc, worker, cfg.StatsCacheTTL)

	svc := &Services{
		Audit:        auditSvc,
		Posting:      postingSvc,
		Reversal:     NewReversalService(repos, locker, auditSvc),
		Allocation:   NewAllocationService(repos, auditSvc),
		Bulk:         bulkSvc,
		Receipt:      receiptSvc,
		Invoice:      invoiceSvc,
		Rent:         NewRentService(repos, auditSvc),
		LeaseRevenue: leaseSvc,
		Statistics:   statsSvc,
	}
	if worker != nil {
		svc.Job = NewJobService(worker, statsSvc)
	}
	return svc
}
