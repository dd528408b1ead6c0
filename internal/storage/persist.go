package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tbeh-star/solvate-ai/internal/agents"
	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// GoldenRecordInput carries everything PersistGoldenRecord needs to assign a
// version and write one merged ExtractionResult to the store.
type GoldenRecordInput struct {
	RunID        uuid.UUID
	ProductName  string
	Brand        string
	Region       string
	DocLanguage  string
	RevisionDate string
	DocumentType string
	Record       *domain.ExtractionResult
	SourceFiles  []string
	MissingCount int
}

// Persister ties the region/version resolution step to the GoldenRecord
// insert, running both inside one transaction so a crash between version
// assignment and insert can never leave a (product_name, region) pair
// without an is_latest row.
type Persister struct {
	db        *sql.DB
	versioner *agents.VersionAssigner
}

// NewPersister builds a Persister over db.
func NewPersister(db *sql.DB) *Persister {
	return &Persister{db: db, versioner: agents.NewVersionAssigner(db)}
}

// PersistGoldenRecord assigns the next (product_name, region) version,
// obsoletes the prior latest row, and inserts the new GoldenRecord, all
// inside one transaction. On any error the transaction rolls back and no
// partial state is left behind.
func (p *Persister) PersistGoldenRecord(ctx context.Context, in GoldenRecordInput) (*GoldenRecord, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("persist golden record: begin tx: %w", err)
	}
	defer tx.Rollback()

	version, err := p.versioner.AssignVersion(ctx, tx, in.ProductName, in.Region)
	if err != nil {
		return nil, fmt.Errorf("persist golden record: %w", err)
	}

	recordJSON, err := json.Marshal(in.Record)
	if err != nil {
		return nil, fmt.Errorf("persist golden record: marshal record: %w", err)
	}

	gr := &GoldenRecord{
		RunID:        in.RunID,
		ProductName:  in.ProductName,
		Brand:        in.Brand,
		Region:       in.Region,
		DocLanguage:  in.DocLanguage,
		RevisionDate: in.RevisionDate,
		DocumentType: in.DocumentType,
		Version:      version,
		IsLatest:     true,
		Record:       recordJSON,
		SourceFiles:  in.SourceFiles,
		SourceCount:  len(in.SourceFiles),
		MissingCount: in.MissingCount,
		Completeness: domain.Completeness(in.MissingCount),
	}

	repo := NewGoldenRecordRepository(tx)
	if err := repo.Insert(ctx, gr); err != nil {
		return nil, fmt.Errorf("persist golden record: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("persist golden record: commit: %w", err)
	}

	return gr, nil
}
