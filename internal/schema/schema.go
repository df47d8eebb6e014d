// Package schema owns the versioned structural contract for extraction
// results: JSON-Schema validation of raw model output, partial-data salvage,
// and non-fatal warning generation.
package schema

import "github.com/kirillkom/menu-extractor/internal/core/domain"

// FallbackCurrency replaces a missing or unrecognizable currency code during
// salvage.
const FallbackCurrency = "USD"

// BuildMenuSchema returns the JSON-Schema (draft 2020-12 subset) for the
// given version as a generic map. The v2 conditional rules that JSON-Schema
// expresses poorly (price/variant/set-menu alternatives) are enforced
// Go-side in Validate.
func BuildMenuSchema(version domain.SchemaVersion) map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"categories"},
		"properties": map[string]any{
			"categories": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items":    categorySchema(version),
			},
			"currency_code": map[string]any{
				"type":      "string",
				"minLength": 3,
				"maxLength": 3,
			},
			"uncertain_items":  map[string]any{"type": "array", "items": uncertainItemSchema()},
			"superfluous_text": map[string]any{"type": "array", "items": superfluousTextSchema()},
		},
	}
}

func categorySchema(version domain.SchemaVersion) map[string]any {
	props := map[string]any{
		"name":       map[string]any{"type": "string", "minLength": 1},
		"confidence": confidenceProp(),
		"items": map[string]any{
			"type":  "array",
			"items": itemSchema(version),
		},
	}
	// Self-reference for nested subcategories is deliberately shallow: one
	// schema per level would recurse forever, so subcategories reuse the
	// top-level pointer.
	props["subcategories"] = map[string]any{
		"type":  "array",
		"items": map[string]any{"$ref": "#/properties/categories/items"},
	}
	return map[string]any{
		"type":       "object",
		"required":   []string{"name", "confidence", "items"},
		"properties": props,
	}
}

func itemSchema(version domain.SchemaVersion) map[string]any {
	props := map[string]any{
		"name":        map[string]any{"type": "string", "minLength": 1},
		"price":       priceProp(),
		"description": map[string]any{"type": "string"},
		"confidence":  confidenceProp(),
	}
	required := []string{"name", "confidence"}
	if version == domain.SchemaV1 {
		required = append(required, "price")
	} else {
		props["variants"] = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "price"},
				"properties": map[string]any{
					"name":  map[string]any{"type": "string", "minLength": 1},
					"price": priceProp(),
				},
			},
		}
		props["modifier_groups"] = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []string{"name", "modifiers"},
				"properties": map[string]any{
					"name":     map[string]any{"type": "string", "minLength": 1},
					"required": map[string]any{"type": "boolean"},
					"modifiers": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":     "object",
							"required": []string{"name"},
							"properties": map[string]any{
								"name":  map[string]any{"type": "string", "minLength": 1},
								"price": priceProp(),
							},
						},
					},
				},
			},
		}
		props["additional_info"] = map[string]any{"type": "string"}
		props["type"] = map[string]any{
			"type": "string",
			"enum": []string{string(domain.ItemTypeStandard), string(domain.ItemTypeSetMenu)},
		}
		props["set_menu"] = map[string]any{
			"type":     "object",
			"required": []string{"price", "courses"},
			"properties": map[string]any{
				"price": priceProp(),
				"courses": map[string]any{
					"type":     "array",
					"minItems": 1,
					"items": map[string]any{
						"type":     "object",
						"required": []string{"name"},
						"properties": map[string]any{
							"name":    map[string]any{"type": "string", "minLength": 1},
							"choices": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
					},
				},
			},
		}
	}
	return map[string]any{
		"type":       "object",
		"required":   required,
		"properties": props,
	}
}

func uncertainItemSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"text", "reason", "confidence"},
		"properties": map[string]any{
			"text":               map[string]any{"type": "string", "minLength": 1},
			"reason":             map[string]any{"type": "string"},
			"confidence":         confidenceProp(),
			"suggested_category": map[string]any{"type": "string"},
			"suggested_price":    priceProp(),
		},
	}
}

func superfluousTextSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"text", "confidence"},
		"properties": map[string]any{
			"text":       map[string]any{"type": "string", "minLength": 1},
			"context":    map[string]any{"type": "string"},
			"confidence": confidenceProp(),
		},
	}
}

func confidenceProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
}

func priceProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0}
}
