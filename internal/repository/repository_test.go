package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sjperalta/fintera-posting/internal/ledger"
	"github.com/sjperalta/fintera-posting/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Invoice{},
		&models.Receipt{},
		&models.LedgerPosting{},
		&models.VoucherSequence{},
		&models.LeaseRevenuePosting{},
		&models.StatisticsCache{},
	))
	return db
}

func TestSequenceNext(t *testing.T) {
	db := setupDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	var got []int64
	for i := 0; i < 3; i++ {
		err := repos.Transaction(ctx, func(tx *Repositories) error {
			n, err := tx.Sequence.Next(ctx, 1, 2025, models.PrefixJournal)
			got = append(got, n)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)

	// separate sequence per prefix
	n, err := repos.Sequence.Next(ctx, 1, 2025, models.PrefixReversal)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// a rolled back reservation is handed out again
	rollback := errors.New("rollback")
	err = repos.Transaction(ctx, func(tx *Repositories) error {
		_, err := tx.Sequence.Next(ctx, 1, 2025, models.PrefixJournal)
		require.NoError(t, err)
		return rollback
	})
	require.ErrorIs(t, err, rollback)
	n, err = repos.Sequence.Next(ctx, 1, 2025, models.PrefixJournal)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPostingLegsAndMarkReversed(t *testing.T) {
	db := setupDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	leg := func(side string, account uint) models.LedgerPosting {
		return models.LedgerPosting{
			CompanyID: 1, FiscalYearID: 2025, VoucherNo: "JV-2025-000001", Side: side, AccountID: account,
			Amount: decimal.NewFromInt(100), Currency: "AED", ExchangeRate: decimal.NewFromInt(1), BaseAmount: decimal.NewFromInt(100),
			PostingDate: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), SourceType: models.SourceReceipt, SourceID: 9,
			Kind: models.KindPosting, RootVoucherNo: "JV-2025-000001",
		}
	}
	require.NoError(t, repos.Posting.CreateLegs(ctx, []models.LedgerPosting{leg(models.SideDebit, 1), leg(models.SideCredit, 2)}))

	// a third leg on the same side is rejected by the unique index
	err := repos.Posting.CreateLegs(ctx, []models.LedgerPosting{leg(models.SideDebit, 3)})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	legs, err := repos.Posting.FindByVoucher(ctx, 1, "JV-2025-000001")
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, models.SideDebit, legs[0].Side)

	n, err := repos.Posting.MarkReversed(ctx, 1, "JV-2025-000001", "RV-2025-000001")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repos.Posting.MarkReversed(ctx, 1, "JV-2025-000001", "RV-2025-000002")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestReceiptPostedFlagIsCheckAndSet(t *testing.T) {
	db := setupDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	receipt := &models.Receipt{
		CompanyID: 1, CustomerID: 5, ReceiptNumber: "R-1", Amount: decimal.NewFromInt(500),
		PaymentMethod: models.PaymentMethodCash, PaymentType: models.PaymentTypeRent,
		ReceivedDate: time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), Status: models.ReceiptStatusReceived,
		DebitAccountID: 1, CreditAccountID: 2, Currency: "AED",
	}
	require.NoError(t, repos.Receipt.Create(ctx, receipt))

	ok, err := repos.Receipt.MarkPosted(ctx, 1, receipt.ID, "JV-2025-000001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Receipt.MarkPosted(ctx, 1, receipt.ID, "JV-2025-000002")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repos.Receipt.MarkUnposted(ctx, 1, receipt.ID, "JV-2025-000002")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repos.Receipt.MarkUnposted(ctx, 1, receipt.ID, "JV-2025-000001")
	require.NoError(t, err)
	assert.True(t, ok)

	// stale version loses
	err = repos.Receipt.UpdateVersioned(ctx, receipt, map[string]interface{}{"bank_name": "ENBD"})
	assert.ErrorIs(t, err, ledger.ErrConcurrentModification)
}

func TestLeaseRevenueMarker(t *testing.T) {
	db := setupDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	voucher := "JV-2025-000001"
	marker := func(v string) *models.LeaseRevenuePosting {
		return &models.LeaseRevenuePosting{
			CompanyID: 1, ContractUnitID: 7, PeriodStart: start, PeriodEnd: end, TotalLeaseDays: 31,
			RentPerDay: decimal.NewFromInt(100), PostingAmount: decimal.NewFromInt(3100), VoucherNo: &v,
		}
	}

	ok, err := repos.LeaseRevenue.MarkPosted(ctx, marker(voucher))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.LeaseRevenue.MarkPosted(ctx, marker("JV-2025-000002"))
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repos.LeaseRevenue.FindPostedOverlap(ctx, 7, start, end)
	require.NoError(t, err)
	assert.Equal(t, voucher, *found.VoucherNo)

	// any shared day counts as an overlap
	found, err = repos.LeaseRevenue.FindPostedOverlap(ctx, 7, end, end.AddDate(0, 0, 14))
	require.NoError(t, err)
	assert.Equal(t, voucher, *found.VoucherNo)

	_, err = repos.LeaseRevenue.FindPostedOverlap(ctx, 7, end.AddDate(0, 0, 1), end.AddDate(0, 1, 0))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	revenue, err := repos.LeaseRevenue.PostedRevenue(ctx, []uint{7})
	require.NoError(t, err)
	assert.Equal(t, "3100.00", revenue[7].StringFixed(2))

	ok, err = repos.LeaseRevenue.MarkUnposted(ctx, found.ID, voucher)
	require.NoError(t, err)
	assert.True(t, ok)

	// unposted markers leave the period open
	_, err = repos.LeaseRevenue.FindPostedOverlap(ctx, 7, start, end)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	ok, err = repos.LeaseRevenue.MarkPosted(ctx, marker("JV-2025-000003"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStatisticsCache(t *testing.T) {
	db := setupDB(t)
	repos := NewRepositories(db)
	ctx := context.Background()

	require.NoError(t, repos.Statistics.SetCache(ctx, "k", 1, map[string]int{"a": 1}, time.Minute))
	require.NoError(t, repos.Statistics.SetCache(ctx, "k", 1, map[string]int{"a": 2}, time.Minute))

	cache, err := repos.Statistics.GetCache(ctx, "k", 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(cache.Data))

	_, err = repos.Statistics.GetCache(ctx, "k", 2)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	require.NoError(t, repos.Statistics.SetCache(ctx, "old", 1, 1, -time.Minute))
	n, err := repos.Statistics.CleanExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
