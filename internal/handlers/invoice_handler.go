package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/services"
)

type InvoiceHandler struct {
	invoiceService *services.InvoiceService
}

func NewInvoiceHandler(invoiceService *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	var req services.CreateInvoiceRequest
	if err := BindNestedOrFlat(c, "invoice", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

func (h *InvoiceHandler) Show(c *gin.Context) {
	id, ok := paramID(c, "invoice_id")
	if !ok {
		return
	}
	invoice, err := h.invoiceService.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// ChangeStatus moves an invoice through its lifecycle. Payment states are
// reached through allocations only.
func (h *InvoiceHandler) ChangeStatus(c *gin.Context) {
	id, ok := paramID(c, "invoice_id")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	invoice, err := h.invoiceService.ChangeStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
