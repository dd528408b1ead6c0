package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

func TestResolveRegion(t *testing.T) {
	tests := []struct {
		name        string
		docType     string
		language    string
		inventories []string
		want        string
	}{
		{"TDS is global", domain.DocTypeTDS, "de", nil, domain.RegionGlobal},
		{"CoA is global", domain.DocTypeCoA, "ja", nil, domain.RegionGlobal},
		{"brochure is global", domain.DocTypeBrochure, "en", nil, domain.RegionGlobal},
		{"RPI is global", domain.DocTypeRPI, "zh", nil, domain.RegionGlobal},
		{"unknown is global", domain.DocTypeUnknown, "en", nil, domain.RegionGlobal},
		{"english SDS maps to EU", domain.DocTypeSDS, "en", nil, domain.RegionEU},
		{"german SDS maps to EU", domain.DocTypeSDS, "de", nil, domain.RegionEU},
		{"locale suffix ignored", domain.DocTypeSDS, "en-US", nil, domain.RegionEU},
		{"japanese SDS maps to JP", domain.DocTypeSDS, "ja", nil, domain.RegionJP},
		{"chinese SDS maps to CN", domain.DocTypeSDS, "zh", nil, domain.RegionCN},
		{"korean SDS maps to KR", domain.DocTypeSDS, "ko", nil, domain.RegionKR},
		{"unmapped language defaults to global", domain.DocTypeSDS, "ru", nil, domain.RegionGlobal},
		{"empty language defaults to global", domain.DocTypeSDS, "", nil, domain.RegionGlobal},
		{
			"TSCA without REACH forces US",
			domain.DocTypeSDS, "en", []string{"TSCA listed"}, domain.RegionUS,
		},
		{
			"TSCA with REACH keeps language region",
			domain.DocTypeSDS, "en", []string{"TSCA listed", "REACH registered"}, domain.RegionEU,
		},
		{
			"inventory override ignores case",
			domain.DocTypeSDS, "ja", []string{"tsca: all components listed"}, domain.RegionUS,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveRegion(tt.docType, tt.language, tt.inventories))
		})
	}
}
