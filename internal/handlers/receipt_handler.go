package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/services"
)

type ReceiptHandler struct {
	receiptService *services.ReceiptService
}

func NewReceiptHandler(receiptService *services.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService}
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *ReceiptHandler) Create(c *gin.Context) {
	var req services.CreateReceiptRequest
	if err := BindNestedOrFlat(c, "receipt", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.receiptService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *ReceiptHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "receipt_id")
	if !ok {
		return
	}
	receipt, err := h.receiptService.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *ReceiptHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "receipt_id")
	if !ok {
		return
	}
	var req services.UpdateReceiptRequest
	if err := BindNestedOrFlat(c, "receipt", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	receipt, err := h.receiptService.Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *ReceiptHandler) ChangeStatus(c *gin.Context) {
	id, ok := paramID(c, "receipt_id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	receipt, err := h.receiptService.ChangeStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *ReceiptHandler) SetDepositInfo(c *gin.Context) {
	id, ok := paramID(c, "receipt_id")
	if !ok {
		return
	}
	var req services.DepositInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	receipt, err := h.receiptService.SetDepositInfo(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}
