package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/winefeed/vine/config"
	"github.com/winefeed/vine/internal/repositories/importline"
	"github.com/winefeed/vine/pkg/database"
	"github.com/winefeed/vine/pkg/gate"
	"github.com/winefeed/vine/pkg/matching"
)

var (
	flagTenantID   string
	flagAll        bool
	flagWindowDays int
)

func main() {
	root := &cobra.Command{
		Use:   "safety-gate [importId]",
		Short: "Audit auto-matched lines against current catalog products",
		Long: `safety-gate re-validates every auto-matched line of an import against the
current state of its matched catalog product. It reads the database only,
never mutates match results, and exits non-zero when any violation or
missing product link is found. With --all it audits every import that had
match activity in the recent window.`,
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}

	root.Flags().StringVar(&flagTenantID, "tenant", os.Getenv("GATE_TENANT_ID"), "tenant to audit (defaults to GATE_TENANT_ID)")
	root.Flags().BoolVar(&flagAll, "all", false, "audit every import with recent match activity")
	root.Flags().IntVar(&flagWindowDays, "window-days", 7, "lookback window for --all")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if !flagAll && len(args) != 1 {
		return fmt.Errorf("an import id is required unless --all is set")
	}
	if !flagAll && flagTenantID == "" {
		return fmt.Errorf("a tenant is required: pass --tenant or set GATE_TENANT_ID")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := newLogger(cfg)
	ctx := cmd.Context()

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword, cfg.DatabaseName, cfg.DatabaseSSLMode)
	sqlxDB, err := sqlx.ConnectContext(ctx, cfg.DatabaseDriver, dsn)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer sqlxDB.Close()

	db := database.NewDatabaseInstance(sqlxDB, logger)
	lines := importline.NewRepository(db, logger)
	auditor := gate.NewAuditor(lines, matching.NewGuardrailValidator(), logger)

	var reports []*gate.ImportReport
	var auditErr error
	if flagAll {
		since := time.Now().UTC().AddDate(0, 0, -flagWindowDays)
		reports, auditErr = auditor.AuditRecent(ctx, since)
	} else {
		var report *gate.ImportReport
		report, auditErr = auditor.AuditImport(ctx, flagTenantID, args[0])
		if report != nil {
			reports = append(reports, report)
		}
	}

	for _, report := range reports {
		gate.WriteReport(cmd.OutOrStdout(), report)
	}
	pass := gate.WriteSummary(cmd.OutOrStdout(), reports)

	if auditErr != nil {
		return fmt.Errorf("audit incomplete: %w", auditErr)
	}
	if !pass {
		os.Exit(1)
	}
	return nil
}

func newLogger(cfg *config.Config) ectologger.Logger {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}
