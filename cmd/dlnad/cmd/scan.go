package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/dlnad/internal/database"
	"github.com/jmylchreest/dlnad/internal/database/migrations"
	"github.com/jmylchreest/dlnad/internal/probe"
	"github.com/jmylchreest/dlnad/internal/repository"
	"github.com/jmylchreest/dlnad/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the media roots once and exit",
	Long: `Scan the configured media directories into the catalog database
without starting the server. Useful for pre-populating the catalog or
for cron-driven setups that run the server with scanning disabled.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Media.Roots) == 0 {
		return fmt.Errorf("no media roots configured")
	}

	logger := slog.Default()
	ctx := cmd.Context()

	if err := os.MkdirAll(cfg.Storage.BaseDir, 0o755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	dbCfg := cfg.Database
	if dbCfg.Driver == "sqlite" {
		dbCfg.DSN = cfg.DatabasePath()
	}
	db, err := database.New(dbCfg, logger, nil)
	if err != nil {
		return fmt.Errorf("opening catalog database: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("initializing migrations: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("migrating catalog database: %w", err)
	}

	sc := scanner.New(
		repository.NewObjectRepository(db.DB),
		repository.NewDetailRepository(db.DB),
		repository.NewCaptionRepository(db.DB),
		repository.NewSettingRepository(db.DB),
		probe.NewProber(logger),
		cfg.Media.Roots,
		logger,
	)
	return sc.ScanAll(ctx)
}
