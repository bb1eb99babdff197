package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/fintera-posting/pkg/logger"
)

// RequestLogger logs every request with its caller and outcome
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if path == "/api/v1/health" {
			return
		}
		if raw != "" {
			path = path + "?" + raw
		}

		statusCode := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", statusCode),
			slog.String("ip", c.ClientIP()),
			slog.Duration("latency", time.Since(start)),
		}
		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			attrs = append(attrs, slog.String("error", errorMessage))
		}
		if userID, exists := c.Get(ctxUserID); exists {
			attrs = append(attrs, slog.Any("user_id", userID), slog.Any("company_id", GetCompanyID(c)))
		}

		msg := "Incoming request"
		switch {
		case statusCode >= 500:
			logger.Log.Error(msg, attrs...)
		case statusCode >= 400:
			logger.Log.Warn(msg, attrs...)
		default:
			logger.Log.Info(msg, attrs...)
		}
	}
}
