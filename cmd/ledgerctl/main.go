// Command ledgerctl runs posting maintenance tasks against the ledger
// database without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sjperalta/fintera-posting/internal/config"
	"github.com/sjperalta/fintera-posting/internal/database"
	"github.com/sjperalta/fintera-posting/internal/locks"
	"github.com/sjperalta/fintera-posting/internal/repository"
	"github.com/sjperalta/fintera-posting/internal/services"
	"github.com/sjperalta/fintera-posting/pkg/logger"
)

var version = "1.0.0"

// app is built once per invocation by the root command
type app struct {
	svcs    *services.Services
	actor   services.Actor
	cleanup func()
}

var (
	current *app

	companyID    uint
	fiscalYearID uint
	userID       uint
)

var rootCmd = &cobra.Command{
	Use:     "ledgerctl",
	Short:   "Posting and allocation maintenance for the ledger",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if companyID == 0 {
			return fmt.Errorf("--company is required")
		}
		if fiscalYearID == 0 {
			fiscalYearID = uint(time.Now().Year())
		}
		a, err := bootstrap()
		if err != nil {
			return err
		}
		a.actor = services.Actor{
			UserID:       userID,
			CompanyID:    companyID,
			FiscalYearID: fiscalYearID,
			UserAgent:    "ledgerctl/" + version,
		}
		current = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.cleanup()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().UintVar(&companyID, "company", 0, "Company whose books are touched")
	rootCmd.PersistentFlags().UintVar(&fiscalYearID, "fiscal-year", 0, "Fiscal year for voucher numbering (default: current year)")
	rootCmd.PersistentFlags().UintVar(&userID, "user", 0, "User recorded in the audit log")
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.Setup(cfg.Environment, cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	cleanup := func() { _ = sqlDB.Close() }
	var locker locks.Locker = locks.NewLocalLocker()
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
		locker = locks.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait)
		cleanup = func() {
			_ = rdb.Close()
			_ = sqlDB.Close()
		}
	}

	repos := repository.NewRepositories(db)
	return &app{
		svcs:    services.NewServices(repos, locker, nil, cfg),
		cleanup: cleanup,
	}, nil
}

// commandContext is cancelled on SIGINT/SIGTERM. Bulk work stops between items.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func parseDate(name, value string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be a date (YYYY-MM-DD): %w", name, err)
	}
	return t, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
