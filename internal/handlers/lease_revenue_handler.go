package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/services"
)

type LeaseRevenueHandler struct {
	leaseRevenueService *services.LeaseRevenueService
}

func NewLeaseRevenueHandler(leaseRevenueService *services.LeaseRevenueService) *LeaseRevenueHandler {
	return &LeaseRevenueHandler{leaseRevenueService: leaseRevenueService}
}

// Index lists the accrued lease revenue of every active lease in from..to
func (h *LeaseRevenueHandler) Index(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}

	entries, err := h.leaseRevenueService.List(c.Request.Context(), actorFrom(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lease_revenue": entries})
}

// PostUnposted posts every unposted entry of the period as one batch
func (h *LeaseRevenueHandler) PostUnposted(c *gin.Context) {
	from, ok := queryDate(c, "from")
	if !ok {
		return
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return
	}

	result, err := h.leaseRevenueService.PostUnposted(c.Request.Context(), actorFrom(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
