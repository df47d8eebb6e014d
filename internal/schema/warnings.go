package schema

import (
	"fmt"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

const (
	lowConfidenceFloor = 0.6
	uncertainItemsSoft = 5
	suspiciousPrice    = 10000.0
)

// Warning is a non-fatal review note attached to a successful validation.
type Warning struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// GenerateWarnings inspects a validated result for review-worthy oddities:
// low confidence, empty categories, too many uncertain items, and prices
// that look misread.
func GenerateWarnings(result *domain.ExtractionResult) []Warning {
	if result == nil {
		return nil
	}
	var warnings []Warning

	var walk func(path string, categories []domain.MenuCategory)
	walk = func(path string, categories []domain.MenuCategory) {
		for ci, category := range categories {
			base := fmt.Sprintf("%s/%d", path, ci)
			if category.Confidence < lowConfidenceFloor {
				warnings = append(warnings, Warning{
					Path:    base,
					Message: fmt.Sprintf("category %q confidence %.2f is below %.1f", category.Name, category.Confidence, lowConfidenceFloor),
				})
			}
			if len(category.Items) == 0 && len(category.Subcategories) == 0 {
				warnings = append(warnings, Warning{
					Path:    base,
					Message: fmt.Sprintf("category %q has no items or subcategories", category.Name),
				})
			}
			for ii, item := range category.Items {
				itemPath := fmt.Sprintf("%s/items/%d", base, ii)
				if item.Confidence < lowConfidenceFloor {
					warnings = append(warnings, Warning{
						Path:    itemPath,
						Message: fmt.Sprintf("item %q confidence %.2f is below %.1f", item.Name, item.Confidence, lowConfidenceFloor),
					})
				}
				if item.Price != nil {
					switch {
					case *item.Price > suspiciousPrice:
						warnings = append(warnings, Warning{
							Path:    itemPath + "/price",
							Message: fmt.Sprintf("item %q price %.2f looks misread", item.Name, *item.Price),
						})
					case *item.Price == 0:
						warnings = append(warnings, Warning{
							Path:    itemPath + "/price",
							Message: fmt.Sprintf("item %q has price 0, needs review", item.Name),
						})
					}
				}
			}
			walk(base+"/subcategories", category.Subcategories)
		}
	}
	walk("/categories", result.Categories)

	if n := len(result.UncertainItems); n > uncertainItemsSoft {
		warnings = append(warnings, Warning{
			Path:    "/uncertain_items",
			Message: fmt.Sprintf("%d uncertain items need review", n),
		})
	}
	return warnings
}
