package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// SalvageReport counts what a salvage pass managed to keep.
type SalvageReport struct {
	ItemsRecovered      int `json:"items_recovered"`
	CategoriesRecovered int `json:"categories_recovered"`
}

// Salvage walks raw model output that failed full validation and keeps the
// structurally valid subset: categories that validate as-is, and for
// categories broken only by bad items, the items that individually validate.
// Currency falls back to FallbackCurrency when missing or unrecognizable.
// Returns nil when nothing usable survived.
func Salvage(raw []byte, version domain.SchemaVersion) (*domain.ExtractionResult, SalvageReport) {
	var report SalvageReport

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, report
	}

	var rawCategories []json.RawMessage
	if cats, ok := doc["categories"]; ok {
		// A non-array categories field is unrecoverable.
		if err := json.Unmarshal(cats, &rawCategories); err != nil {
			return nil, report
		}
	}

	var kept []domain.MenuCategory
	for _, rawCategory := range rawCategories {
		category, items, ok := salvageCategory(rawCategory, version)
		if !ok {
			continue
		}
		kept = append(kept, category)
		report.CategoriesRecovered++
		report.ItemsRecovered += items
	}
	if len(kept) == 0 {
		return nil, SalvageReport{}
	}

	result := &domain.ExtractionResult{
		Categories:   kept,
		CurrencyCode: salvageCurrency(doc["currency_code"]),
	}
	// The side arrays are additive, so any structurally plausible entries
	// are carried through even when the tree needed repair.
	if rawList, ok := doc["uncertain_items"]; ok {
		result.UncertainItems = plausibleUncertainItems(rawList)
	}
	if rawList, ok := doc["superfluous_text"]; ok {
		result.SuperfluousText = plausibleSuperfluousText(rawList)
	}
	return result, report
}

// salvageCategory validates one category subtree; on failure it retries with
// only the individually valid items. Returns the kept category and its item
// count.
func salvageCategory(rawCategory json.RawMessage, version domain.SchemaVersion) (domain.MenuCategory, int, bool) {
	if category, ok := validCategory(rawCategory, version); ok {
		return category, countItems(category), true
	}

	var shape struct {
		Name       string            `json:"name"`
		Confidence *float64          `json:"confidence"`
		Items      []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(rawCategory, &shape); err != nil {
		return domain.MenuCategory{}, 0, false
	}
	if strings.TrimSpace(shape.Name) == "" || shape.Confidence == nil {
		return domain.MenuCategory{}, 0, false
	}

	var goodItems []json.RawMessage
	for _, rawItem := range shape.Items {
		if itemValidates(rawItem, shape.Name, *shape.Confidence, version) {
			goodItems = append(goodItems, rawItem)
		}
	}
	if len(goodItems) == 0 {
		return domain.MenuCategory{}, 0, false
	}

	repaired, err := json.Marshal(map[string]any{
		"name":       shape.Name,
		"confidence": *shape.Confidence,
		"items":      goodItems,
	})
	if err != nil {
		return domain.MenuCategory{}, 0, false
	}
	category, ok := validCategory(repaired, version)
	if !ok {
		return domain.MenuCategory{}, 0, false
	}
	return category, len(category.Items), true
}

// validCategory runs a single category through the full versioned schema by
// wrapping it in a minimal envelope, so nested subcategory references
// resolve.
func validCategory(rawCategory json.RawMessage, version domain.SchemaVersion) (domain.MenuCategory, bool) {
	envelope := fmt.Sprintf(`{"categories":[%s]}`, rawCategory)
	result, errs := Validate([]byte(envelope), version)
	if len(errs) > 0 || result == nil || len(result.Categories) != 1 {
		return domain.MenuCategory{}, false
	}
	return result.Categories[0], true
}

func itemValidates(rawItem json.RawMessage, categoryName string, categoryConfidence float64, version domain.SchemaVersion) bool {
	probe, err := json.Marshal(map[string]any{
		"name":       categoryName,
		"confidence": categoryConfidence,
		"items":      []json.RawMessage{rawItem},
	})
	if err != nil {
		return false
	}
	_, ok := validCategory(probe, version)
	return ok
}

func countItems(category domain.MenuCategory) int {
	n := len(category.Items)
	for _, sub := range category.Subcategories {
		n += countItems(sub)
	}
	return n
}

func salvageCurrency(raw json.RawMessage) string {
	var code string
	if err := json.Unmarshal(raw, &code); err != nil {
		return FallbackCurrency
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return FallbackCurrency
	}
	return code
}

func plausibleUncertainItems(raw json.RawMessage) []domain.UncertainItem {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	var kept []domain.UncertainItem
	for _, entry := range entries {
		var item domain.UncertainItem
		if err := json.Unmarshal(entry, &item); err != nil {
			continue
		}
		if strings.TrimSpace(item.Text) == "" {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func plausibleSuperfluousText(raw json.RawMessage) []domain.SuperfluousText {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	var kept []domain.SuperfluousText
	for _, entry := range entries {
		var text domain.SuperfluousText
		if err := json.Unmarshal(entry, &text); err != nil {
			continue
		}
		if strings.TrimSpace(text.Text) == "" {
			continue
		}
		kept = append(kept, text)
	}
	return kept
}
