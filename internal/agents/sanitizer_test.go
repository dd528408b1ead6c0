package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no fences", `{"a": 1}`, `{"a": 1}`},
		{"plain fences", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"json fences", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"leading whitespace", "  ```json\n{\"a\": 1}\n```  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestSanitizeDocTypeNormalisation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Technical Data Sheet", domain.DocTypeTDS},
		{"safety data sheet", domain.DocTypeSDS},
		{"Regulatory Product Information", domain.DocTypeRPI},
		{"Certificate of Analysis", domain.DocTypeCoA},
		{"Brochure", domain.DocTypeBrochure},
		{"TDS", "TDS"},
	}
	for _, tt := range tests {
		out := SanitizeExtractionJSON(map[string]interface{}{
			"document_info": map[string]interface{}{"document_type": tt.in},
		})
		info := out["document_info"].(map[string]interface{})
		assert.Equal(t, tt.want, info["document_type"], "input %q", tt.in)
	}
}

func TestSanitizePlainStringWrappedAsFact(t *testing.T) {
	out := SanitizeExtractionJSON(map[string]interface{}{
		"identity": map[string]interface{}{
			"product_name": map[string]interface{}{
				"value":          "ELASTOSIL RT 601",
				"source_section": "header",
			},
		},
	})
	identity := out["identity"].(map[string]interface{})
	assert.Equal(t, "ELASTOSIL RT 601", identity["product_name"])
}

func TestSanitizePlainStringAsFactList(t *testing.T) {
	out := SanitizeExtractionJSON(map[string]interface{}{
		"application": map[string]interface{}{
			"main_application": []interface{}{
				map[string]interface{}{"value": "mold making"},
				map[string]interface{}{"value": "encapsulation"},
			},
		},
	})
	app := out["application"].(map[string]interface{})
	assert.Equal(t, "mold making; encapsulation", app["main_application"])
}

func TestSanitizeSingleFactAsList(t *testing.T) {
	first := map[string]interface{}{"value": "1.02 g/cm³", "confidence": "high"}
	out := SanitizeExtractionJSON(map[string]interface{}{
		"physical": map[string]interface{}{
			"density": []interface{}{
				first,
				map[string]interface{}{"value": "1.05 g/cm³"},
			},
		},
	})
	physical := out["physical"].(map[string]interface{})
	assert.Equal(t, first, physical["density"])
}

func TestSanitizeNullListItemDropped(t *testing.T) {
	out := SanitizeExtractionJSON(map[string]interface{}{
		"safety": map[string]interface{}{
			"certifications": []interface{}{"FDA", nil, "REACH"},
		},
	})
	safety := out["safety"].(map[string]interface{})
	assert.Equal(t, []interface{}{"FDA", "REACH"}, safety["certifications"])
}

func TestSanitizeNullListBecomesEmpty(t *testing.T) {
	out := SanitizeExtractionJSON(map[string]interface{}{
		"safety": map[string]interface{}{"ghs_statements": nil},
	})
	safety := out["safety"].(map[string]interface{})
	assert.Equal(t, []interface{}{}, safety["ghs_statements"])
}

func TestSanitizeListItemFactUnwrapped(t *testing.T) {
	out := SanitizeExtractionJSON(map[string]interface{}{
		"safety": map[string]interface{}{
			"certifications": []interface{}{
				map[string]interface{}{"value": "ISO 9001"},
				map[string]interface{}{"name": "ISO 14001"},
				"NSF 51",
			},
		},
	})
	safety := out["safety"].(map[string]interface{})
	assert.Equal(t, []interface{}{"ISO 9001", "ISO 14001", "NSF 51"}, safety["certifications"])
}

func TestSanitizeCASNumbersNull(t *testing.T) {
	out := SanitizeExtractionJSON(map[string]interface{}{
		"chemical": map[string]interface{}{"cas_numbers": nil},
	})
	chem := out["chemical"].(map[string]interface{})
	fact := chem["cas_numbers"].(map[string]interface{})
	assert.Nil(t, fact["value"])
	assert.Equal(t, domain.ConfidenceLow, fact["confidence"])
}

func TestSanitizeCASNumbersListOfFacts(t *testing.T) {
	out := SanitizeExtractionJSON(map[string]interface{}{
		"chemical": map[string]interface{}{
			"cas_numbers": []interface{}{
				map[string]interface{}{"value": "63148-62-9", "source_section": "Section 3", "confidence": "high"},
				map[string]interface{}{"value": "68083-19-2", "source_section": "Section 3.2", "confidence": "medium"},
			},
		},
	})
	chem := out["chemical"].(map[string]interface{})
	fact := chem["cas_numbers"].(map[string]interface{})
	assert.Equal(t, "63148-62-9, 68083-19-2", fact["value"])
	assert.Equal(t, "Section 3", fact["source_section"])
	assert.Equal(t, "high", fact["confidence"])
}

func TestSanitizeCASNumbersValidFactPassesThrough(t *testing.T) {
	fact := map[string]interface{}{
		"value":            "63148-62-9",
		"source_section":   "Section 3",
		"raw_string":       "CAS-No. 63148-62-9",
		"confidence":       "high",
		"is_specification": true,
	}
	out := SanitizeExtractionJSON(map[string]interface{}{
		"chemical": map[string]interface{}{"cas_numbers": fact},
	})
	chem := out["chemical"].(map[string]interface{})
	assert.Equal(t, fact, chem["cas_numbers"])
}

// Sanitizer(Sanitizer(x)) must equal Sanitizer(x) for any input shape.
func TestSanitizeIdempotent(t *testing.T) {
	input := map[string]interface{}{
		"document_info": map[string]interface{}{"document_type": "Technical Data Sheet"},
		"identity": map[string]interface{}{
			"product_name": map[string]interface{}{"value": "RT 601"},
		},
		"chemical": map[string]interface{}{
			"cas_numbers": []interface{}{
				map[string]interface{}{"value": "63148-62-9", "source_section": "§3"},
			},
		},
		"physical": map[string]interface{}{
			"density": []interface{}{map[string]interface{}{"value": "1.02"}},
		},
		"safety": map[string]interface{}{
			"ghs_statements": nil,
			"certifications": []interface{}{map[string]interface{}{"value": "ISO 9001"}},
		},
	}

	once := SanitizeExtractionJSON(input)
	twice := SanitizeExtractionJSON(once)

	onceJSON, err := json.Marshal(once)
	require.NoError(t, err)
	twiceJSON, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.JSONEq(t, string(onceJSON), string(twiceJSON))
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := ParseJSON("not json at all")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}
