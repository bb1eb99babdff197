package database

import (
	"fmt"
	"os"
	"strings"
	"time"

	pkgLogger "github.com/sjperalta/fintera-posting/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sjperalta/fintera-posting/internal/models"
)

const sqlitePrefix = "sqlite:"

// Connect opens the ledger database. URLs starting with "sqlite:" open an
// embedded SQLite database (local runs of ledgerctl and tests); anything
// else is handed to the PostgreSQL driver.
func Connect(databaseURL string) (*gorm.DB, error) {
	// Configure GORM logger
	logLevel := logger.Warn
	if os.Getenv("ENVIRONMENT") != "production" {
		logLevel = logger.Info
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		200*time.Millisecond,
	)

	embedded := strings.HasPrefix(databaseURL, sqlitePrefix)
	var dialector gorm.Dialector
	if embedded {
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, sqlitePrefix))
	} else {
		dialector = postgres.Open(databaseURL)
	}

	// Open database connection
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            !embedded,
		TranslateError:         true, // unique violations surface as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	if embedded {
		// SQLite allows one writer; a single connection also keeps an
		// in-memory database alive for the life of the pool.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		sqlDB.SetConnMaxIdleTime(0)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates every ledger table
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Account{},
		&models.ExchangeRate{},
		&models.ContractUnit{},
		&models.Invoice{},
		&models.Receipt{},
		&models.Allocation{},
		&models.LedgerPosting{},
		&models.VoucherSequence{},
		&models.LeaseRevenuePosting{},
		&models.AuditLog{},
		&models.StatisticsCache{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
