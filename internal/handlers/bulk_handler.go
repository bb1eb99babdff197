package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/services"
)

type BulkHandler struct {
	bulkService *services.BulkService
}

func NewBulkHandler(bulkService *services.BulkService) *BulkHandler {
	return &BulkHandler{bulkService: bulkService}
}

type BulkRequest struct {
	Items []services.BulkItem `json:"items" binding:"required"`
}

func (h *BulkHandler) Apply(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.bulkService.Apply(c.Request.Context(), actorFrom(c), c.Param("operation"), req.Items)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
