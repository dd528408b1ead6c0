// Package agents implements the five pipeline agents that sit between the
// Parser and the persisted GoldenRecord: Classifier, the doc-type Extractor
// pool, Sanitizer, conditional Auditor, Merger, region/version resolution,
// and cost accounting.
package agents

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tbeh-star/solvate-ai/internal/domain"
)

// plainStringFields are ExtractionResult attributes declared as a bare
// string but sometimes returned by the LLM wrapped in a Fact-shaped dict.
var plainStringFields = map[string]bool{
	"product_name":     true,
	"product_line":     true,
	"wacker_sku":       true,
	"product_url":      true,
	"language":         true,
	"manufacturer":     true,
	"brand":            true,
	"revision_date":    true,
	"main_application": true,
	"wiaw_status":      true,
	"sales_advisory":   true,
}

// singleFactFields are ExtractionResult attributes declared as a single
// Fact but sometimes returned as a list of Facts.
var singleFactFields = map[string]bool{
	"grade":             true,
	"purity":            true,
	"physical_form":     true,
	"density":           true,
	"flash_point":       true,
	"temperature_range": true,
	"shelf_life":        true,
	"cure_system":       true,
	"un_number":         true,
}

// plainStringListFields are list-of-string attributes sometimes returned as
// a list of Fact-shaped dicts.
var plainStringListFields = map[string]bool{
	"material_numbers":    true,
	"chemical_components": true,
	"chemical_synonyms":   true,
	"usage_restrictions":  true,
	"packaging_options":   true,
	"ghs_statements":      true,
	"certifications":      true,
	"global_inventories":  true,
	"blocked_countries":   true,
	"blocked_industries":  true,
	"missing_attributes":  true,
	"extraction_warnings": true,
}

// docTypeMap normalises full document-type names to their short codes.
var docTypeMap = map[string]string{
	"technical data sheet":           domain.DocTypeTDS,
	"safety data sheet":              domain.DocTypeSDS,
	"raw product information":        domain.DocTypeRPI,
	"regulatory product information": domain.DocTypeRPI,
	"certificate of analysis":        domain.DocTypeCoA,
	"brochure":                       domain.DocTypeBrochure,
}

const maxSanitizeDepth = 5

// StripCodeFences removes a leading/trailing ``` fence an LLM sometimes
// wraps its JSON response in.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if firstLine == "" || !strings.Contains(firstLine, "{") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// unwrapValue converts a Fact-shaped map or scalar into its plain string
// representation, per the Sanitizer's unwrap_value helper.
func unwrapValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		if val, ok := t["value"]; ok {
			if val == nil {
				return nil
			}
			return fmt.Sprintf("%v", val)
		}
		return nil
	case string:
		return t
	case nil:
		return nil
	default:
		s := fmt.Sprintf("%v", t)
		if s == "" {
			return nil
		}
		return s
	}
}

// SanitizeExtractionJSON repairs common LLM output-shape errors before
// schema validation. It is a pure, idempotent function: applying it twice
// yields the same output.
func SanitizeExtractionJSON(data map[string]interface{}) map[string]interface{} {
	result := fixDict(data, 0)
	if m, ok := result.(map[string]interface{}); ok {
		return m
	}
	return data
}

func fixDict(d map[string]interface{}, depth int) interface{} {
	if depth > maxSanitizeDepth {
		return d
	}

	out := make(map[string]interface{}, len(d))
	for key, val := range d {
		switch {
		case key == "document_type":
			out[key] = normalizeDocType(val)
		case key == "cas_numbers":
			out[key] = fixCASNumbers(val)
		case plainStringFields[key]:
			out[key] = fixPlainString(val)
		case singleFactFields[key]:
			out[key] = fixSingleFact(val)
		case plainStringListFields[key]:
			out[key] = fixPlainStringList(val)
		default:
			out[key] = recurseValue(val, depth)
		}
	}
	return out
}

func normalizeDocType(val interface{}) interface{} {
	s, ok := val.(string)
	if !ok {
		return val
	}
	key := strings.ToLower(strings.TrimSpace(s))
	if code, ok := docTypeMap[key]; ok {
		return code
	}
	return s
}

func fixPlainString(val interface{}) interface{} {
	switch t := val.(type) {
	case map[string]interface{}:
		return unwrapValue(t)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			u := unwrapValue(item)
			if u != nil {
				if s, ok := u.(string); ok && s != "" {
					parts = append(parts, s)
				}
			}
		}
		return strings.Join(parts, "; ")
	default:
		return val
	}
}

func fixSingleFact(val interface{}) interface{} {
	list, ok := val.([]interface{})
	if !ok {
		return val
	}
	if len(list) == 0 {
		return val
	}
	first := list[0]
	if _, ok := first.(map[string]interface{}); ok {
		return first
	}
	return first
}

func fixPlainStringList(val interface{}) interface{} {
	if val == nil {
		return []interface{}{}
	}
	list, ok := val.([]interface{})
	if !ok {
		return val
	}
	cleaned := make([]interface{}, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		cleaned = append(cleaned, cleanListItem(item))
	}
	return cleaned
}

func cleanListItem(item interface{}) interface{} {
	switch t := item.(type) {
	case map[string]interface{}:
		if v, ok := t["value"]; ok {
			return fmt.Sprintf("%v", v)
		}
		if n, ok := t["name"]; ok {
			return fmt.Sprintf("%v", n)
		}
		parts := make([]string, 0, len(t))
		for k, v := range t {
			parts = append(parts, fmt.Sprintf("%s: %v", k, v))
		}
		return strings.Join(parts, "; ")
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// factDict builds a Fact-shaped map with the given defaults, used by the
// cas_numbers null-placeholder and join cases.
func factDict(value interface{}, sourceSection, rawString, confidence string, isSpec bool) map[string]interface{} {
	return map[string]interface{}{
		"value":            value,
		"source_section":   sourceSection,
		"raw_string":       rawString,
		"confidence":       confidence,
		"is_specification": isSpec,
		"test_method":      nil,
	}
}

func fixCASNumbers(val interface{}) interface{} {
	if val == nil {
		return factDict(nil, "not found", "CAS number not found in document", domain.ConfidenceLow, false)
	}

	list, ok := val.([]interface{})
	if !ok {
		return val
	}

	values := make([]string, 0, len(list))
	var firstSection, firstConfidence string
	for _, item := range list {
		switch t := item.(type) {
		case map[string]interface{}:
			if v, ok := t["value"]; ok && v != nil {
				s := fmt.Sprintf("%v", v)
				if s != "" {
					values = append(values, s)
					if firstSection == "" {
						if sec, ok := t["source_section"].(string); ok {
							firstSection = sec
						}
						if conf, ok := t["confidence"].(string); ok {
							firstConfidence = conf
						}
					}
				}
			}
		case string:
			if t != "" {
				values = append(values, t)
			}
		}
	}

	if len(values) == 0 {
		return factDict(nil, "not found", "CAS number not found in document", domain.ConfidenceLow, false)
	}

	if firstSection == "" {
		firstSection = "Section 3"
	}
	if firstConfidence == "" {
		firstConfidence = domain.ConfidenceHigh
	}

	joined := strings.Join(values, ", ")
	return factDict(joined, firstSection, joined, firstConfidence, true)
}

func recurseValue(val interface{}, depth int) interface{} {
	switch t := val.(type) {
	case map[string]interface{}:
		return fixDict(t, depth+1)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				out[i] = fixDict(m, depth+1)
			} else {
				out[i] = item
			}
		}
		return out
	default:
		return val
	}
}

// ParseJSON strips code fences and unmarshals the raw LLM output into a
// generic map, ready for SanitizeExtractionJSON.
func ParseJSON(raw string) (map[string]interface{}, error) {
	text := StripCodeFences(raw)
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("invalid JSON from LLM: %w", err)
	}
	return data, nil
}
