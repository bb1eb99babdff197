package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/services"
)

type RentHandler struct {
	rentService *services.RentService
}

func NewRentHandler(rentService *services.RentService) *RentHandler {
	return &RentHandler{rentService: rentService}
}

// Derive fills in the missing rent figure without touching any lease
func (h *RentHandler) Derive(c *gin.Context) {
	var terms ledger.RentTerms
	if err := c.ShouldBindJSON(&terms); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	c.JSON(http.StatusOK, h.rentService.Sync(terms))
}

func (h *RentHandler) SyncContractUnit(c *gin.Context) {
	unitID, ok := paramID(c, "unit_id")
	if !ok {
		return
	}

	var changes *ledger.RentTerms
	var terms ledger.RentTerms
	switch err := c.ShouldBindJSON(&terms); {
	case err == nil:
		changes = &terms
	case errors.Is(err, io.EOF):
		// no body, recompute from the stored figures
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.rentService.SyncContractUnit(c.Request.Context(), actorFrom(c), unitID, changes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
