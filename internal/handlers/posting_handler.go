package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/services"
)

type PostingHandler struct {
	postingService  *services.PostingService
	reversalService *services.ReversalService
}

func NewPostingHandler(postingService *services.PostingService, reversalService *services.ReversalService) *PostingHandler {
	return &PostingHandler{postingService: postingService, reversalService: reversalService}
}

// Create posts a receipt, invoice or lease revenue period as one voucher
func (h *PostingHandler) Create(c *gin.Context) {
	var req services.PostRequest
	if err := BindNestedOrFlat(c, "posting", &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	voucher, err := h.postingService.Post(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, voucher)
}

func (h *PostingHandler) Show(c *gin.Context) {
	voucher, err := h.postingService.GetVoucher(c.Request.Context(), actorFrom(c), c.Param("voucher_no"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, voucher)
}

// History lists every leg of the voucher's reversal chain, oldest first
func (h *PostingHandler) History(c *gin.Context) {
	legs, err := h.postingService.History(c.Request.Context(), actorFrom(c), c.Param("voucher_no"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"postings": legs})
}

type ReverseRequest struct {
	Reason string `json:"reason"`
}

// Reverse writes the mirror voucher of :voucher_no
func (h *PostingHandler) Reverse(c *gin.Context) {
	var req ReverseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	voucher, err := h.reversalService.Reverse(c.Request.Context(), actorFrom(c), c.Param("voucher_no"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, voucher)
}
