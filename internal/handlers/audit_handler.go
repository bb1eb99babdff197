package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/services"
)

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) Index(c *gin.Context) {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "50"))
	query.Filters["entity"] = c.Query("entity")
	query.Filters["action"] = c.Query("action")
	query.Filters["entity_key"] = c.Query("entity_key")

	logs, total, err := h.auditService.List(c.Request.Context(), actorFrom(c), query)
	if err != nil {
		respondError(c, err)
		return
	}

	perPage := int64(max(query.PerPage, 1))
	c.JSON(http.StatusOK, gin.H{
		"audits": logs,
		"pagination": gin.H{
			"page":        query.Page,
			"per_page":    query.PerPage,
			"total":       total,
			"total_pages": (total + perPage - 1) / perPage,
		},
	})
}
