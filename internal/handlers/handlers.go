package handlers

import (
	"github.com/sjperalta/fintera-posting/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Posting      *PostingHandler
	Allocation   *AllocationHandler
	Bulk         *BulkHandler
	Statistics   *StatisticsHandler
	LeaseRevenue *LeaseRevenueHandler
	Rent         *RentHandler
	Receipt      *ReceiptHandler
	Invoice      *InvoiceHandler
	Audit        *AuditHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Posting:      NewPostingHandler(svcs.Posting, svcs.Reversal),
		Allocation:   NewAllocationHandler(svcs.Allocation),
		Bulk:         NewBulkHandler(svcs.Bulk),
		Statistics:   NewStatisticsHandler(svcs.Statistics),
		LeaseRevenue: NewLeaseRevenueHandler(svcs.LeaseRevenue),
		Rent:         NewRentHandler(svcs.Rent),
		Receipt:      NewReceiptHandler(svcs.Receipt),
		Invoice:      NewInvoiceHandler(svcs.Invoice),
		Audit:        NewAuditHandler(svcs.Audit),
		Job:          NewJobHandler(svcs.Job),
	}
}
