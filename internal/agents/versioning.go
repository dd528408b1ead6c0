package agents

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// langToRegion maps an SDS's declared language to the region a GoldenRecord
// should be filed under. Every other doc type is region-agnostic (GLOBAL).
var langToRegion = map[string]string{
	"en": domain.RegionEU,
	"de": domain.RegionEU,
	"fr": domain.RegionEU,
	"es": domain.RegionEU,
	"it": domain.RegionEU,
	"pt": domain.RegionEU,
	"nl": domain.RegionEU,
	"pl": domain.RegionEU,
	"ja": domain.RegionJP,
	"zh": domain.RegionCN,
	"ko": domain.RegionKR,
}

// ResolveRegion assigns a GoldenRecord's region. TDS, CoA, Brochure, and RPI
// documents are always GLOBAL. SDS documents are mapped by declared language,
// defaulting to GLOBAL, unless the inventory override fires: a
// global_inventories list naming TSCA but not REACH forces US regardless of
// language.
func ResolveRegion(docType, language string, globalInventories []string) string {
	if docType != domain.DocTypeSDS {
		return domain.RegionGlobal
	}

	region := domain.RegionGlobal
	lang := strings.ToLower(strings.TrimSpace(language))
	if len(lang) > 2 {
		lang = lang[:2]
	}
	if r, ok := langToRegion[lang]; ok {
		region = r
	}

	hasTSCA, hasREACH := false, false
	for _, inv := range globalInventories {
		up := strings.ToUpper(inv)
		if strings.Contains(up, "TSCA") {
			hasTSCA = true
		}
		if strings.Contains(up, "REACH") {
			hasREACH = true
		}
	}
	if hasTSCA && !hasREACH {
		return domain.RegionUS
	}

	return region
}

// VersionAssigner assigns the next version number to a GoldenRecord and
// obsoletes the prior latest row within one transaction.
type VersionAssigner struct {
	db *sql.DB
}

// NewVersionAssigner wraps a *sql.DB for transactional version assignment.
func NewVersionAssigner(db *sql.DB) *VersionAssigner {
	return &VersionAssigner{db: db}
}

// AssignVersion returns the next version number for (productName, region),
// marking any existing is_latest row for that pair as no longer latest. The
// caller performs the actual INSERT of the new row inside the same
// transaction, using the returned version number.
//
// A transaction-scoped advisory lock on the (productName, region) key
// serializes concurrent batches: a row lock cannot cover the first version
// of a lineage (there is no row to lock yet), while the advisory lock makes
// the read-max/obsolete/insert sequence atomic either way. It is released
// automatically at commit or rollback.
func (v *VersionAssigner) AssignVersion(ctx context.Context, tx *sql.Tx, productName, region string) (int, error) {
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`,
		productName, region,
	); err != nil {
		return 0, fmt.Errorf("assign version: acquire lineage lock: %w", err)
	}

	var maxVersion sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT MAX(version) FROM golden_records WHERE product_name = $1 AND region = $2`,
		productName, region,
	).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("assign version: query max version: %w", err)
	}

	next := 1
	if maxVersion.Valid {
		next = int(maxVersion.Int64) + 1
	}

	if maxVersion.Valid {
		if _, err := tx.ExecContext(ctx,
			`UPDATE golden_records SET is_latest = false WHERE product_name = $1 AND region = $2 AND is_latest = true`,
			productName, region,
		); err != nil {
			return 0, fmt.Errorf("assign version: obsolete prior latest: %w", err)
		}
	}

	return next, nil
}
