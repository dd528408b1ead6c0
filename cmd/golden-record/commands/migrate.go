package commands

import (
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	ui "github.com/tbeh-star/solvate-ai/internal/cliui"
	"github.com/tbeh-star/solvate-ai/internal/domain"
	"github.com/tbeh-star/solvate-ai/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the extraction_runs and golden_records schema",
	Long: `Apply the pipeline's Postgres schema, including the partial unique index
that enforces at most one is_latest row per (product_name, region).
Idempotent; safe to run repeatedly.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ui.InitUI(noColor, verbose)
	defer ui.Close()

	if cfg.Database.DSN == "" {
		return domain.ConfigError("database.dsn is required for migrate (set POSTGRES_DSN)", nil)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return domain.ConfigError("open database", err)
	}
	defer db.Close()

	if err := db.PingContext(cmd.Context()); err != nil {
		return domain.ConfigError("connect to database", err)
	}

	if err := storage.Migrate(cmd.Context(), db); err != nil {
		return err
	}

	ui.Success("Schema applied")
	return nil
}
