package schema

import (
	"testing"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

func TestSalvageDropsOnlyTheBrokenItem(t *testing.T) {
	raw := `{
		"categories": [
			{
				"name": "Mains",
				"confidence": 0.9,
				"items": [
					{"name": "Pasta", "price": 10.0, "confidence": 0.9},
					{"name": "Mystery", "price": -5, "confidence": 0.9}
				]
			}
		],
		"currency_code": "EUR"
	}`

	result, report := Salvage([]byte(raw), domain.SchemaV2)
	if result == nil {
		t.Fatal("expected a salvaged result")
	}
	if report.ItemsRecovered != 1 || report.CategoriesRecovered != 1 {
		t.Fatalf("report = %+v, want 1 item in 1 category", report)
	}
	if len(result.Categories[0].Items) != 1 || result.Categories[0].Items[0].Name != "Pasta" {
		t.Fatalf("kept items = %+v", result.Categories[0].Items)
	}
	if result.CurrencyCode != "EUR" {
		t.Fatalf("currency = %q, want EUR preserved", result.CurrencyCode)
	}
}

func TestSalvageKeepsIntactCategoriesWholesale(t *testing.T) {
	raw := `{
		"categories": [
			{"name": "Starters", "confidence": 0.95, "items": [{"name": "Soup", "price": 6.0, "confidence": 0.95}]},
			{"name": "", "confidence": 0.9, "items": [{"name": "Orphan", "price": 5.0, "confidence": 0.9}]}
		]
	}`

	result, report := Salvage([]byte(raw), domain.SchemaV2)
	if result == nil {
		t.Fatal("expected a salvaged result")
	}
	if report.CategoriesRecovered != 1 {
		t.Fatalf("categories recovered = %d, want 1 (nameless category is unrecoverable)", report.CategoriesRecovered)
	}
	if result.Categories[0].Name != "Starters" {
		t.Fatalf("kept category = %q", result.Categories[0].Name)
	}
}

func TestSalvageFallsBackToDefaultCurrency(t *testing.T) {
	raw := `{
		"categories": [
			{"name": "Mains", "confidence": 0.9, "items": [{"name": "Stew", "price": 9.0, "confidence": 0.9}]}
		],
		"currency_code": "euros"
	}`

	result, _ := Salvage([]byte(raw), domain.SchemaV2)
	if result == nil {
		t.Fatal("expected a salvaged result")
	}
	if result.CurrencyCode != FallbackCurrency {
		t.Fatalf("currency = %q, want fallback %q", result.CurrencyCode, FallbackCurrency)
	}
}

func TestSalvageNormalizesLowercaseCurrency(t *testing.T) {
	raw := `{
		"categories": [
			{"name": "Mains", "confidence": 0.9, "items": [{"name": "Stew", "price": 9.0, "confidence": 0.9}]}
		],
		"currency_code": "jpy"
	}`

	result, _ := Salvage([]byte(raw), domain.SchemaV2)
	if result.CurrencyCode != "JPY" {
		t.Fatalf("currency = %q, want JPY", result.CurrencyCode)
	}
}

func TestSalvageCarriesPlausibleSideArrays(t *testing.T) {
	raw := `{
		"categories": [
			{"name": "Mains", "confidence": 0.9, "items": [
				{"name": "Stew", "price": 9.0, "confidence": 0.9},
				{"name": "Broken", "price": -1, "confidence": 0.9}
			]}
		],
		"uncertain_items": [
			{"text": "smudged line", "reason": "glare", "confidence": 0.3},
			{"text": "", "reason": "empty entries are dropped", "confidence": 0.3}
		],
		"superfluous_text": [
			{"text": "Family owned since 1962", "confidence": 0.8}
		]
	}`

	result, _ := Salvage([]byte(raw), domain.SchemaV2)
	if result == nil {
		t.Fatal("expected a salvaged result")
	}
	if len(result.UncertainItems) != 1 {
		t.Fatalf("uncertain items = %d, want 1", len(result.UncertainItems))
	}
	if len(result.SuperfluousText) != 1 {
		t.Fatalf("superfluous text = %d, want 1", len(result.SuperfluousText))
	}
}

func TestSalvageReturnsNilWhenNothingSurvives(t *testing.T) {
	cases := map[string]string{
		"empty categories":  `{"categories": []}`,
		"not an array":      `{"categories": {"name": "Mains"}}`,
		"all items broken":  `{"categories": [{"name": "Mains", "confidence": 0.9, "items": [{"name": "", "confidence": 0.9}]}]}`,
		"not a JSON object": `["just", "an", "array"]`,
	}
	for name, raw := range cases {
		if result, report := Salvage([]byte(raw), domain.SchemaV2); result != nil || report.ItemsRecovered != 0 {
			t.Errorf("%s: expected nil result, got %+v (%+v)", name, result, report)
		}
	}
}
