package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/middleware"
	"github.com/sjperalta/fintera-posting/internal/services"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// respondError maps a service error onto a status code. Validation failures
// list every violation; integrity and unknown errors are reported to Sentry.
func respondError(c *gin.Context, err error) {
	code := ledger.CodeOf(err)
	if code == "" {
		report(c, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	body := gin.H{"error": err.Error(), "code": code}
	var ve *ledger.ValidationError
	if errors.As(err, &ve) {
		body["violations"] = ve.Violations
	}

	switch code.Kind() {
	case ledger.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case ledger.KindConflict:
		c.JSON(http.StatusConflict, body)
	case ledger.KindCancelled:
		c.JSON(http.StatusRequestTimeout, body)
	case ledger.KindIntegrity:
		report(c, err)
		c.JSON(http.StatusInternalServerError, body)
	default:
		c.JSON(http.StatusUnprocessableEntity, body)
	}
}

func report(c *gin.Context, err error) {
	logger.Error("Request failed", "path", c.FullPath(), "error", err)
	_ = c.Error(err)
	if hub := sentrygin.GetHubFromContext(c); hub != nil {
		hub.CaptureException(err)
	}
}

// actorFrom reads the caller set by the auth middleware
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:       middleware.GetUserID(c),
		CompanyID:    middleware.GetCompanyID(c),
		FiscalYearID: middleware.GetFiscalYearID(c),
		IP:           c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	}
}

// paramID parses a numeric path parameter, answering 400 when it is not one
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// queryDate parses a required YYYY-MM-DD query parameter
func queryDate(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " is required"})
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a date (YYYY-MM-DD)"})
		return time.Time{}, false
	}
	return t, true
}
