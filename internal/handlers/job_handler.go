package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
func (h *JobHandler) Status(c *gin.Context) {
	if h.jobService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Background worker is not running"})
		return
	}
	c.JSON(http.StatusOK, h.jobService.GetStatus())
}
