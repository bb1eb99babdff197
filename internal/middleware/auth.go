package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by Auth
const (
	ctxUserID       = "userID"
	ctxCompanyID    = "companyID"
	ctxFiscalYearID = "fiscalYearID"
	ctxUserRole     = "userRole"
)

// Claims represents the JWT claims structure. Tokens are issued by the
// identity service; this API only validates them.
type Claims struct {
	UserID       uint   `json:"user_id"`
	CompanyID    uint   `json:"company_id"`
	FiscalYearID uint   `json:"fiscal_year_id"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// Auth returns a middleware that validates JWT tokens
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
			})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		claims, err := validateToken(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": err.Error(),
			})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxCompanyID, claims.CompanyID)
		c.Set(ctxFiscalYearID, claims.FiscalYearID)
		c.Set(ctxUserRole, claims.Role)
		c.Set("claims", claims)

		c.Next()
	}
}

// validateToken parses and validates a JWT token string
func validateToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.New("token has expired")
		}
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.UserID == 0 || claims.CompanyID == 0 || claims.FiscalYearID == 0 {
		return nil, errors.New("token is missing user, company or fiscal year")
	}

	return claims, nil
}

// GetUserID extracts the user ID from the Gin context
func GetUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

// GetCompanyID extracts the company the caller acts for
func GetCompanyID(c *gin.Context) uint {
	return c.GetUint(ctxCompanyID)
}

// GetFiscalYearID extracts the fiscal year vouchers are numbered in
func GetFiscalYearID(c *gin.Context) uint {
	return c.GetUint(ctxFiscalYearID)
}

// GetUserRole extracts the user role from the Gin context
func GetUserRole(c *gin.Context) string {
	return c.GetString(ctxUserRole)
}

// RequireRole returns a middleware that requires specific roles
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole := GetUserRole(c)
		for _, role := range allowedRoles {
			if userRole == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "You do not have access to this operation",
		})
	}
}
