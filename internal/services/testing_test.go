package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-posting/internal/config"
	"github.com/sjperalta/fintera-posting/internal/database"
	"github.com/sjperalta/fintera-posting/internal/locks"
	"github.com/sjperalta/fintera-posting/internal/models"
	"github.com/sjperalta/fintera-posting/internal/repository"
)

// chart of accounts shared by every test
const (
	acctCash       uint = 1
	acctReceivable uint = 2
	acctRevenue    uint = 3
	acctClosed     uint = 4
)

var testActor = Actor{UserID: 7, CompanyID: 1, FiscalYearID: 2025, IP: "127.0.0.1", UserAgent: "go-test"}

func setupServices(t *testing.T) (*Services, *repository.Repositories) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Connect(fmt.Sprintf("sqlite:file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repos := repository.NewRepositories(db)
	ctx := context.Background()
	for _, a := range []models.Account{
		{ID: acctCash, CompanyID: 1, Code: "1000", Name: "Cash", Active: true},
		{ID: acctReceivable, CompanyID: 1, Code: "1200", Name: "Receivables", Active: true},
		{ID: acctRevenue, CompanyID: 1, Code: "4000", Name: "Rental income", Active: true},
		{ID: acctClosed, CompanyID: 1, Code: "9999", Name: "Closed", Active: false},
	} {
		require.NoError(t, repos.Account.Create(ctx, &a))
	}

	cfg := &config.Config{BaseCurrency: "AED", StatsCacheTTL: time.Minute}
	return NewServices(repos, locks.NewLocalLocker(), nil, cfg), repos
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func createReceipt(t *testing.T, svc *Services, number, amount string) *models.Receipt {
	t.Helper()
	receipt, err := svc.Receipt.Create(context.Background(), testActor, CreateReceiptRequest{
		CustomerID:      42,
		ReceiptNumber:   number,
		Amount:          dec(amount),
		PaymentMethod:   models.PaymentMethodBankTransfer,
		PaymentType:     models.PaymentTypeRent,
		ReceivedDate:    date("2025-01-10"),
		DebitAccountID:  acctCash,
		CreditAccountID: acctReceivable,
	})
	require.NoError(t, err)
	return receipt
}

func receiptPost(receipt *models.Receipt) PostRequest {
	return PostRequest{
		SourceType:      models.SourceReceipt,
		SourceID:        receipt.ID,
		PostingDate:     receipt.ReceivedDate,
		DebitAccountID:  receipt.DebitAccountID,
		CreditAccountID: receipt.CreditAccountID,
		Amount:          receipt.Amount,
		Narration:       "Receipt " + receipt.ReceiptNumber,
	}
}

// createPostedInvoice creates a draft invoice and posts it against receivables
func createPostedInvoice(t *testing.T, svc *Services, number, total string) *models.Invoice {
	t.Helper()
	ctx := context.Background()
	invoice, err := svc.Invoice.Create(ctx, testActor, CreateInvoiceRequest{
		CustomerID:    42,
		InvoiceNumber: number,
		DueDate:       date("2025-01-31"),
		GrossAmount:   dec(total),
	})
	require.NoError(t, err)

	_, err = svc.Posting.Post(ctx, testActor, PostRequest{
		SourceType:      models.SourceInvoice,
		SourceID:        invoice.ID,
		PostingDate:     date("2025-01-01"),
		DebitAccountID:  acctReceivable,
		CreditAccountID: acctRevenue,
		Amount:          invoice.TotalAmount,
		Narration:       "Invoice " + number,
	})
	require.NoError(t, err)

	invoice, err = svc.Invoice.Get(ctx, testActor, invoice.ID)
	require.NoError(t, err)
	return invoice
}

// accountNet sums debits minus credits per account across every leg
func accountNet(t *testing.T, repos *repository.Repositories, sourceType string, sourceID uint) map[uint]decimal.Decimal {
	t.Helper()
	legs, err := repos.Posting.FindBySource(context.Background(), testActor.CompanyID, sourceType, sourceID)
	require.NoError(t, err)
	net := map[uint]decimal.Decimal{}
	for _, leg := range legs {
		amount := leg.Amount
		if leg.Side == models.SideCredit {
			amount = amount.Neg()
		}
		net[leg.AccountID] = net[leg.AccountID].Add(amount)
	}
	return net
}
