package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-secret"

func sign(t *testing.T, key string, claims Claims) string {
	t.Helper()
	if claims.ExpiresAt == nil {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/whoami", Auth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":        GetUserID(c),
			"company":     GetCompanyID(c),
			"fiscal_year": GetFiscalYearID(c),
		})
	})
	router.GET("/supervised", Auth(secret), RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	full := Claims{UserID: 7, CompanyID: 1, FiscalYearID: 2025, Role: "admin"}

	tests := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"valid token", "/whoami", "Bearer " + sign(t, secret, full), http.StatusOK},
		{"missing header", "/whoami", "", http.StatusUnauthorized},
		{"not bearer", "/whoami", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "/whoami", "Bearer " + sign(t, "other", full), http.StatusUnauthorized},
		{"expired", "/whoami", "Bearer " + sign(t, secret, Claims{
			UserID: 7, CompanyID: 1, FiscalYearID: 2025,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		}), http.StatusUnauthorized},
		{"no company", "/whoami", "Bearer " + sign(t, secret, Claims{UserID: 7, FiscalYearID: 2025}), http.StatusUnauthorized},
		{"role allowed", "/supervised", "Bearer " + sign(t, secret, full), http.StatusNoContent},
		{"role denied", "/supervised", "Bearer " + sign(t, secret, Claims{UserID: 7, CompanyID: 1, FiscalYearID: 2025, Role: "viewer"}), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestAuth_SetsActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.Header.Set("Authorization", "Bearer "+sign(t, secret, Claims{UserID: 3, CompanyID: 9, FiscalYearID: 2024}))

	Auth(secret)(c)

	assert.False(t, c.IsAborted())
	assert.Equal(t, uint(3), GetUserID(c))
	assert.Equal(t, uint(9), GetCompanyID(c))
	assert.Equal(t, uint(2024), GetFiscalYearID(c))
}
