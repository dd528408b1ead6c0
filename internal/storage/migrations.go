package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements creates the extraction_runs and golden_records tables.
// idx_golden_records_latest is a partial unique index — Postgres has no way
// to express "at most one row per (product_name, region) with is_latest =
// true" as a plain UNIQUE constraint, since a regular unique index would
// also forbid multiple non-latest historical versions. The WHERE clause is
// required, not optional.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS extraction_runs (
		id UUID PRIMARY KEY,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		pdf_count INTEGER NOT NULL DEFAULT 0,
		golden_records_count INTEGER NOT NULL DEFAULT 0,
		total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error_message TEXT,
		metadata JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS golden_records (
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES extraction_runs(id),
		product_name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL,
		doc_language TEXT NOT NULL DEFAULT '',
		revision_date TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		is_latest BOOLEAN NOT NULL DEFAULT true,
		golden_record JSONB NOT NULL,
		source_files JSONB NOT NULL,
		source_count INTEGER NOT NULL DEFAULT 0,
		missing_count INTEGER NOT NULL DEFAULT 0,
		completeness DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_golden_records_latest
		ON golden_records (product_name, region)
		WHERE is_latest`,
	`CREATE INDEX IF NOT EXISTS idx_golden_records_run_id ON golden_records (run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_golden_records_product_name ON golden_records (product_name)`,
	`CREATE INDEX IF NOT EXISTS idx_golden_records_brand ON golden_records (brand)`,
	`CREATE INDEX IF NOT EXISTS idx_golden_records_record_gin ON golden_records USING GIN (golden_record)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_golden_records_run_product_region ON golden_records (run_id, product_name, region)`,
	`CREATE INDEX IF NOT EXISTS idx_golden_records_product_region ON golden_records (product_name, region)`,
	`CREATE INDEX IF NOT EXISTS idx_golden_records_product_region_version ON golden_records (product_name, region, version)`,
}

// Migrate applies the pipeline's schema, idempotently.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
