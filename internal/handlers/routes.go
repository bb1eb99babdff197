package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/middleware"
)

// Roles allowed to reverse vouchers and run batches
var supervisorRoles = []string{"admin", "accountant"}

// Register mounts every route under v1. Everything except health requires a
// valid bearer token.
func (h *Handlers) Register(v1 *gin.RouterGroup, jwtSecret string) {
	// Health check (public)
	v1.GET("/health", h.Health.Index)

	protected := v1.Group("")
	protected.Use(middleware.Auth(jwtSecret))
	{
		protected.POST("/allocations/validate", h.Allocation.Validate)

		receipts := protected.Group("/receipts")
		{
			receipts.POST("", h.Receipt.Create)
			receipts.GET("/:receipt_id", h.Receipt.Show)
			receipts.PATCH("/:receipt_id", h.Receipt.Update)
			receipts.POST("/:receipt_id/status", h.Receipt.ChangeStatus)
			receipts.POST("/:receipt_id/deposit", h.Receipt.SetDepositInfo)
			receipts.GET("/:receipt_id/allocations", h.Allocation.Index)
			receipts.POST("/:receipt_id/allocations", h.Allocation.Allocate)
		}

		invoices := protected.Group("/invoices")
		{
			invoices.POST("", h.Invoice.Create)
			invoices.GET("/:invoice_id", h.Invoice.Show)
			invoices.POST("/:invoice_id/status", h.Invoice.ChangeStatus)
		}

		protected.POST("/postings", h.Posting.Create)
		vouchers := protected.Group("/vouchers")
		{
			vouchers.GET("/:voucher_no", h.Posting.Show)
			vouchers.GET("/:voucher_no/history", h.Posting.History)
			vouchers.POST("/:voucher_no/reverse", middleware.RequireRole(supervisorRoles...), h.Posting.Reverse)
		}

		protected.POST("/bulk/:operation", middleware.RequireRole(supervisorRoles...), h.Bulk.Apply)

		protected.GET("/statistics", h.Statistics.Index)

		protected.GET("/lease_revenue", h.LeaseRevenue.Index)
		protected.POST("/lease_revenue/post", middleware.RequireRole(supervisorRoles...), h.LeaseRevenue.PostUnposted)

		protected.POST("/contract_units/:unit_id/rent_sync", h.Rent.SyncContractUnit)
		protected.POST("/rent/sync", h.Rent.Derive)

		protected.GET("/audits", h.Audit.Index)
		protected.GET("/jobs/status", h.Job.Status)
	}
}
