// Package storage provides database models and repositories for the
// extraction pipeline: ExtractionRun lifecycle tracking and versioned,
// region-scoped GoldenRecord persistence.
package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of one ExtractionRun row.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ExtractionRun is one batch invocation of the pipeline.
type ExtractionRun struct {
	ID                 uuid.UUID
	StartedAt          time.Time
	FinishedAt         *time.Time
	PDFCount           int
	GoldenRecordsCount int
	TotalCost          float64
	Status             RunStatus
	ErrorMessage       *string
	Metadata           json.RawMessage
}

// GoldenRecord is a persisted, versioned, region-scoped merged extraction.
type GoldenRecord struct {
	ID           uuid.UUID
	RunID        uuid.UUID
	ProductName  string
	Brand        string
	Region       string
	DocLanguage  string
	RevisionDate string
	DocumentType string
	Version      int
	IsLatest     bool
	Record       json.RawMessage // the domain.ExtractionResult, serialized
	SourceFiles  []string
	SourceCount  int
	MissingCount int
	Completeness float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
