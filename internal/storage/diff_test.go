package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenNestedSections(t *testing.T) {
	record := map[string]interface{}{
		"identity": map[string]interface{}{
			"product_name": "RT 601",
			"grade":        map[string]interface{}{"value": "industrial", "confidence": "high"},
		},
		"safety": map[string]interface{}{
			"ghs_statements": []interface{}{"H315", "H319"},
			"un_number":      nil,
		},
		"missing_attributes": []interface{}{},
	}

	flat := flatten("", record)

	assert.Equal(t, "RT 601", flat["identity.product_name"])
	assert.Equal(t, "industrial", flat["identity.grade.value"])
	assert.Equal(t, `["H315","H319"]`, flat["safety.ghs_statements"])

	// Nil leaves and empty lists are absent, not empty strings.
	_, hasUN := flat["safety.un_number"]
	assert.False(t, hasUN)
	_, hasMissing := flat["missing_attributes"]
	assert.False(t, hasMissing)
}

func TestFlattenScalars(t *testing.T) {
	flat := flatten("", map[string]interface{}{
		"count": float64(3),
		"flag":  true,
	})
	assert.Equal(t, "3", flat["count"])
	assert.Equal(t, "true", flat["flag"])
}
