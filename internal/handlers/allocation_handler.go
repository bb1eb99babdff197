package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/services"
)

type AllocationHandler struct {
	allocationService *services.AllocationService
}

func NewAllocationHandler(allocationService *services.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocationService: allocationService}
}

// Validate checks a distribution without applying it. Violations are part of
// the normal response, not an error.
func (h *AllocationHandler) Validate(c *gin.Context) {
	var req services.ValidateAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	check, err := h.allocationService.Validate(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

type AllocateRequest struct {
	Allocations []ledger.AllocationLine `json:"allocations" binding:"required"`
}

func (h *AllocationHandler) Allocate(c *gin.Context) {
	receiptID, ok := paramID(c, "receipt_id")
	if !ok {
		return
	}
	var req AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.allocationService.Allocate(c.Request.Context(), actorFrom(c), receiptID, req.Allocations)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AllocationHandler) Index(c *gin.Context) {
	receiptID, ok := paramID(c, "receipt_id")
	if !ok {
		return
	}
	allocations, err := h.allocationService.List(c.Request.Context(), actorFrom(c), receiptID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": allocations})
}
