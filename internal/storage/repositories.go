package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record conflict")
)

// DB represents a database connection interface, satisfied by both *sql.DB
// and *sql.Tx so repository methods can run inside a caller-managed
// transaction.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// ExtractionRunRepository handles ExtractionRun CRUD operations.
type ExtractionRunRepository struct {
	db DB
}

// NewExtractionRunRepository creates a new ExtractionRunRepository.
func NewExtractionRunRepository(db DB) *ExtractionRunRepository {
	return &ExtractionRunRepository{db: db}
}

// Create inserts a new ExtractionRun, generating its ID and started_at if
// unset.
func (r *ExtractionRunRepository) Create(ctx context.Context, run *ExtractionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	query := `
		INSERT INTO extraction_runs (id, started_at, finished_at, pdf_count, golden_records_count, total_cost, status, error_message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.PDFCount, run.GoldenRecordsCount,
		run.TotalCost, run.Status, run.ErrorMessage, run.Metadata,
	)
	return err
}

// Finish marks a run completed or failed, recording its final counters.
func (r *ExtractionRunRepository) Finish(ctx context.Context, runID uuid.UUID, status RunStatus, goldenRecordsCount int, totalCost float64, errMsg *string) error {
	query := `
		UPDATE extraction_runs
		SET status = $2, finished_at = $3, golden_records_count = $4, total_cost = $5, error_message = $6
		WHERE id = $1
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query, runID, status, now, goldenRecordsCount, totalCost, errMsg)
	return err
}

// GetByID retrieves an ExtractionRun by ID.
func (r *ExtractionRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*ExtractionRun, error) {
	query := `
		SELECT id, started_at, finished_at, pdf_count, golden_records_count, total_cost, status, error_message, metadata
		FROM extraction_runs WHERE id = $1
	`
	run := &ExtractionRun{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.PDFCount, &run.GoldenRecordsCount,
		&run.TotalCost, &run.Status, &run.ErrorMessage, &run.Metadata,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// GoldenRecordRepository handles GoldenRecord persistence, versioning, and
// region-scoped lookups.
type GoldenRecordRepository struct {
	db DB
}

// NewGoldenRecordRepository creates a new GoldenRecordRepository.
func NewGoldenRecordRepository(db DB) *GoldenRecordRepository {
	return &GoldenRecordRepository{db: db}
}

// Insert writes a new GoldenRecord row. Callers assign Version and IsLatest
// beforehand, typically via VersionAssigner.AssignVersion run in the same
// transaction.
func (r *GoldenRecordRepository) Insert(ctx context.Context, gr *GoldenRecord) error {
	if gr.ID == uuid.Nil {
		gr.ID = uuid.New()
	}
	now := time.Now()
	gr.CreatedAt, gr.UpdatedAt = now, now

	sourceFiles, err := json.Marshal(gr.SourceFiles)
	if err != nil {
		return fmt.Errorf("marshal source_files: %w", err)
	}

	query := `
		INSERT INTO golden_records (
			id, run_id, product_name, brand, region, doc_language, revision_date,
			document_type, version, is_latest, golden_record, source_files, source_count,
			missing_count, completeness, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`
	_, err = r.db.ExecContext(ctx, query,
		gr.ID, gr.RunID, gr.ProductName, gr.Brand, gr.Region, gr.DocLanguage, gr.RevisionDate,
		gr.DocumentType, gr.Version, gr.IsLatest, gr.Record, sourceFiles, gr.SourceCount,
		gr.MissingCount, gr.Completeness, gr.CreatedAt, gr.UpdatedAt,
	)
	return err
}

// GetLatest retrieves the current latest-version GoldenRecord for a
// (productName, region) pair.
func (r *GoldenRecordRepository) GetLatest(ctx context.Context, productName, region string) (*GoldenRecord, error) {
	query := `
		SELECT id, run_id, product_name, brand, region, doc_language, revision_date,
		       document_type, version, is_latest, golden_record, source_files, source_count,
		       missing_count, completeness, created_at, updated_at
		FROM golden_records
		WHERE product_name = $1 AND region = $2 AND is_latest = true
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, productName, region))
}

// ListVersions returns every version of a (productName, region)'s
// GoldenRecord, newest first.
func (r *GoldenRecordRepository) ListVersions(ctx context.Context, productName, region string) ([]*GoldenRecord, error) {
	query := `
		SELECT id, run_id, product_name, brand, region, doc_language, revision_date,
		       document_type, version, is_latest, golden_record, source_files, source_count,
		       missing_count, completeness, created_at, updated_at
		FROM golden_records
		WHERE product_name = $1 AND region = $2
		ORDER BY version DESC
	`
	rows, err := r.db.QueryContext(ctx, query, productName, region)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*GoldenRecord
	for rows.Next() {
		gr, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}

// ListLatestByRun returns the latest-flagged GoldenRecords produced by one
// run.
func (r *GoldenRecordRepository) ListLatestByRun(ctx context.Context, runID uuid.UUID) ([]*GoldenRecord, error) {
	query := `
		SELECT id, run_id, product_name, brand, region, doc_language, revision_date,
		       document_type, version, is_latest, golden_record, source_files, source_count,
		       missing_count, completeness, created_at, updated_at
		FROM golden_records
		WHERE run_id = $1 AND is_latest = true
		ORDER BY product_name, region
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*GoldenRecord
	for rows.Next() {
		gr, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}

func (r *GoldenRecordRepository) scanOne(row *sql.Row) (*GoldenRecord, error) {
	gr := &GoldenRecord{}
	var sourceFiles []byte
	err := row.Scan(
		&gr.ID, &gr.RunID, &gr.ProductName, &gr.Brand, &gr.Region, &gr.DocLanguage, &gr.RevisionDate,
		&gr.DocumentType, &gr.Version, &gr.IsLatest, &gr.Record, &sourceFiles, &gr.SourceCount,
		&gr.MissingCount, &gr.Completeness, &gr.CreatedAt, &gr.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sourceFiles, &gr.SourceFiles); err != nil {
		return nil, fmt.Errorf("unmarshal source_files: %w", err)
	}
	return gr, nil
}

func (r *GoldenRecordRepository) scanRow(rows *sql.Rows) (*GoldenRecord, error) {
	gr := &GoldenRecord{}
	var sourceFiles []byte
	err := rows.Scan(
		&gr.ID, &gr.RunID, &gr.ProductName, &gr.Brand, &gr.Region, &gr.DocLanguage, &gr.RevisionDate,
		&gr.DocumentType, &gr.Version, &gr.IsLatest, &gr.Record, &sourceFiles, &gr.SourceCount,
		&gr.MissingCount, &gr.Completeness, &gr.CreatedAt, &gr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(sourceFiles, &gr.SourceFiles); err != nil {
		return nil, fmt.Errorf("unmarshal source_files: %w", err)
	}
	return gr, nil
}
