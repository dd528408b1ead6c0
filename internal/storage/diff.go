package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// FieldChange describes one attribute's change between two GoldenRecord
// versions of the same (product_name, region) pair.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`
}

// RecordDiff is the result of comparing two GoldenRecord versions.
type RecordDiff struct {
	OldVersion int           `json:"old_version"`
	NewVersion int           `json:"new_version"`
	Added      []FieldChange `json:"added"`
	Removed    []FieldChange `json:"removed"`
	Changed    []FieldChange `json:"changed"`
}

// Diff compares the golden_record JSON of two GoldenRecord rows belonging to
// the same (product_name, region) lineage and reports which attributes were
// added, removed, or changed going from oldID to newID. Used by agent-extract
// to explain why a re-ingest obsoleted a prior version.
func (r *GoldenRecordRepository) Diff(ctx context.Context, oldID, newID uuid.UUID) (*RecordDiff, error) {
	oldGR, err := r.getByID(ctx, oldID)
	if err != nil {
		return nil, fmt.Errorf("diff: load old record: %w", err)
	}
	newGR, err := r.getByID(ctx, newID)
	if err != nil {
		return nil, fmt.Errorf("diff: load new record: %w", err)
	}

	var oldFields, newFields map[string]interface{}
	if err := json.Unmarshal(oldGR.Record, &oldFields); err != nil {
		return nil, fmt.Errorf("diff: unmarshal old record: %w", err)
	}
	if err := json.Unmarshal(newGR.Record, &newFields); err != nil {
		return nil, fmt.Errorf("diff: unmarshal new record: %w", err)
	}

	flatOld := flatten("", oldFields)
	flatNew := flatten("", newFields)

	diff := &RecordDiff{OldVersion: oldGR.Version, NewVersion: newGR.Version}
	for field, newVal := range flatNew {
		oldVal, existed := flatOld[field]
		if !existed {
			diff.Added = append(diff.Added, FieldChange{Field: field, NewValue: newVal})
			continue
		}
		if oldVal != newVal {
			diff.Changed = append(diff.Changed, FieldChange{Field: field, OldValue: oldVal, NewValue: newVal})
		}
	}
	for field, oldVal := range flatOld {
		if _, ok := flatNew[field]; !ok {
			diff.Removed = append(diff.Removed, FieldChange{Field: field, OldValue: oldVal})
		}
	}

	sort.Slice(diff.Added, func(i, j int) bool { return diff.Added[i].Field < diff.Added[j].Field })
	sort.Slice(diff.Removed, func(i, j int) bool { return diff.Removed[i].Field < diff.Removed[j].Field })
	sort.Slice(diff.Changed, func(i, j int) bool { return diff.Changed[i].Field < diff.Changed[j].Field })

	return diff, nil
}

func (r *GoldenRecordRepository) getByID(ctx context.Context, id uuid.UUID) (*GoldenRecord, error) {
	query := `
		SELECT id, run_id, product_name, brand, region, doc_language, revision_date,
		       document_type, version, is_latest, golden_record, source_files, source_count,
		       missing_count, completeness, created_at, updated_at
		FROM golden_records WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// flatten walks a decoded JSON value into a dotted-path -> stringified-leaf
// map, skipping nil leaves and empty containers so only populated attributes
// show up in the diff.
func flatten(prefix string, value interface{}) map[string]string {
	out := make(map[string]string)
	switch v := value.(type) {
	case map[string]interface{}:
		for key, val := range v {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			for k, s := range flatten(path, val) {
				out[k] = s
			}
		}
	case []interface{}:
		if len(v) == 0 {
			return out
		}
		buf, _ := json.Marshal(v)
		out[prefix] = string(buf)
	case nil:
		// absent leaf, nothing to record
	default:
		out[prefix] = fmt.Sprintf("%v", v)
	}
	return out
}
