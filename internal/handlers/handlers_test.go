package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-posting/internal/config"
	"github.com/sjperalta/fintera-posting/internal/database"
	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/locks"
	"github.com/sjperalta/fintera-posting/internal/middleware"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/services"
)

const testSecret = "handler-test-secret"

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	token  string
}

func setupAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repos := repository.NewRepositories(db)
	for _, a := range []models.Account{
		{ID: 1, CompanyID: 1, Code: "1000", Name: "Cash", Active: true},
		{ID: 2, CompanyID: 1, Code: "1200", Name: "Receivables", Active: true},
		{ID: 3, CompanyID: 1, Code: "4000", Name: "Rental income", Active: true},
	} {
		require.NoError(t, repos.Account.Create(context.Background(), &a))
	}

	cfg := &config.Config{BaseCurrency: "AED", StatsCacheTTL: time.Minute}
	h := NewHandlers(services.NewServices(repos, locks.NewLocalLocker(), nil, cfg))

	router := gin.New()
	h.Register(router.Group("/api/v1"), testSecret)

	return &apiClient{t: t, router: router, token: signToken(t, "admin")}
}

func signToken(t *testing.T, role string) string {
	t.Helper()
	claims := middleware.Claims{
		UserID:       7,
		CompanyID:    1,
		FiscalYearID: 2025,
		Role:         role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (a *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *apiClient) createReceipt(number, amount string) models.Receipt {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/receipts", map[string]any{
		"receipt": map[string]any{
			"customer_id":       42,
			"receipt_number":    number,
			"amount":            amount,
			"payment_method":    "bank_transfer",
			"payment_type":      "rent",
			"received_date":     "2025-01-10T00:00:00Z",
			"debit_account_id":  1,
			"credit_account_id": 2,
		},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.Receipt](a.t, w)
}

func TestHealthIsPublic(t *testing.T) {
	api := setupAPI(t)
	api.token = ""

	w := api.do(http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/v1/statistics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPostAndReverseOverHTTP(t *testing.T) {
	api := setupAPI(t)
	receipt := api.createReceipt("RCT-H1", "500")

	post := map[string]any{
		"source_type":       models.SourceReceipt,
		"source_id":         receipt.ID,
		"posting_date":      "2025-01-10T00:00:00Z",
		"debit_account_id":  1,
		"credit_account_id": 2,
		"amount":            "500",
		"narration":         "Receipt RCT-H1",
	}
	w := api.do(http.MethodPost, "/api/v1/postings", post)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	voucher := decode[models.Voucher](t, w)
	assert.Equal(t, "JV-2025-000001", voucher.VoucherNo)

	w = api.do(http.MethodPost, "/api/v1/postings", post)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(ledger.CodeAlreadyPosted), decode[map[string]any](t, w)["code"])

	w = api.do(http.MethodGet, "/api/v1/vouchers/JV-2025-000001", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodGet, "/api/v1/vouchers/JV-2025-999999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	api.token = signToken(t, "viewer")
	w = api.do(http.MethodPost, "/api/v1/vouchers/JV-2025-000001/reverse", map[string]any{"reason": "duplicate"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	api.token = signToken(t, "accountant")
	w = api.do(http.MethodPost, "/api/v1/vouchers/JV-2025-000001/reverse", map[string]any{"reason": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(ledger.CodeEmptyReason), decode[map[string]any](t, w)["code"])

	w = api.do(http.MethodPost, "/api/v1/vouchers/JV-2025-000001/reverse", map[string]any{"reason": "duplicate"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reversal := decode[models.Voucher](t, w)
	assert.Equal(t, "RV-2025-000001", reversal.VoucherNo)

	w = api.do(http.MethodGet, "/api/v1/vouchers/JV-2025-000001/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode[map[string][]models.LedgerPosting](t, w)
	assert.Len(t, history["postings"], 4)
}

func TestAllocationOverHTTP(t *testing.T) {
	api := setupAPI(t)
	receipt := api.createReceipt("RCT-H2", "100")

	w := api.do(http.MethodPost, "/api/v1/allocations/validate", map[string]any{
		"receipt_amount": "100",
		"allocations":    []map[string]any{{"invoice_id": 999, "amount": "50"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	check := decode[ledger.AllocationCheck](t, w)
	assert.False(t, check.Valid)
	require.NotEmpty(t, check.Violations)
	assert.Equal(t, ledger.CodeUnknownInvoice, check.Violations[0].Code)

	w = api.do(http.MethodPost, fmt.Sprintf("/api/v1/receipts/%d/allocations", receipt.ID), map[string]any{
		"allocations": []map[string]any{{"invoice_id": 999, "amount": "50"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, string(ledger.CodeUnknownInvoice), body["code"])
	assert.NotEmpty(t, body["violations"])

	w = api.do(http.MethodGet, "/api/v1/receipts/abc/allocations", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkAndStatisticsOverHTTP(t *testing.T) {
	api := setupAPI(t)
	r1 := api.createReceipt("RCT-H3", "100")
	r2 := api.createReceipt("RCT-H4", "100")

	w := api.do(http.MethodPost, "/api/v1/bulk/change_status", map[string]any{
		"items": []map[string]any{
			{"source_type": models.SourceReceipt, "source_id": r1.ID, "status": models.ReceiptStatusCleared},
			{"source_type": models.SourceReceipt, "source_id": r2.ID, "status": "lost"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[services.BulkResult](t, w)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, 1, result.FailedCount)

	w = api.do(http.MethodPost, "/api/v1/bulk/delete", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodGet, "/api/v1/statistics?from=2025-01-01&to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	stats := decode[ledger.Statistics](t, w)
	assert.Equal(t, 2, stats.UnpostedReceipts.Count)

	w = api.do(http.MethodGet, "/api/v1/statistics?from=2025-02-01&to=2025-01-01", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(http.MethodGet, "/api/v1/statistics?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/lease_revenue?from=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRentDeriveOverHTTP(t *testing.T) {
	api := setupAPI(t)

	w := api.do(http.MethodPost, "/api/v1/rent/sync", `{"monthly_rent": "1000", "installments": 12}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode[services.RentSyncResult](t, w)
	assert.Equal(t, ledger.RentDerivedYearly, result.Derivation)
	require.NotNil(t, result.YearlyRent)
	assert.Equal(t, "12000", result.YearlyRent.String())

	w = api.do(http.MethodPost, "/api/v1/contract_units/404/rent_sync", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
