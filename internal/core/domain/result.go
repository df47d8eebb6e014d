package domain

type ItemType string

const (
	ItemTypeStandard ItemType = "standard"
	ItemTypeSetMenu  ItemType = "set_menu"
)

// ExtractionResult is the structured menu tree produced by the vision model
// after validation (or salvage). Invariant: at least one category.
type ExtractionResult struct {
	Categories      []MenuCategory    `json:"categories"`
	CurrencyCode    string            `json:"currency_code"`
	UncertainItems  []UncertainItem   `json:"uncertain_items,omitempty"`
	SuperfluousText []SuperfluousText `json:"superfluous_text,omitempty"`
}

type MenuCategory struct {
	Name          string         `json:"name"`
	Confidence    float64        `json:"confidence"`
	Items         []MenuItem     `json:"items"`
	Subcategories []MenuCategory `json:"subcategories,omitempty"`
}

// MenuItem carries the v1 fields plus the optional v2 extensions. Under v2
// an item must have at least one of: price, a variant, or a set-menu body.
type MenuItem struct {
	Name        string   `json:"name"`
	Price       *float64 `json:"price,omitempty"`
	Description string   `json:"description,omitempty"`
	Confidence  float64  `json:"confidence"`

	Variants       []ItemVariant   `json:"variants,omitempty"`
	ModifierGroups []ModifierGroup `json:"modifier_groups,omitempty"`
	AdditionalInfo string          `json:"additional_info,omitempty"`
	Type           ItemType        `json:"type,omitempty"`
	SetMenu        *SetMenu        `json:"set_menu,omitempty"`
}

type ItemVariant struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type ModifierGroup struct {
	Name      string     `json:"name"`
	Required  bool       `json:"required,omitempty"`
	Modifiers []Modifier `json:"modifiers"`
}

type Modifier struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

type SetMenu struct {
	Price   float64     `json:"price"`
	Courses []SetCourse `json:"courses"`
}

type SetCourse struct {
	Name    string   `json:"name"`
	Choices []string `json:"choices,omitempty"`
}

// UncertainItem is text the model flagged as probable menu content it could
// not confidently structure.
type UncertainItem struct {
	Text              string   `json:"text"`
	Reason            string   `json:"reason"`
	Confidence        float64  `json:"confidence"`
	SuggestedCategory string   `json:"suggested_category,omitempty"`
	SuggestedPrice    *float64 `json:"suggested_price,omitempty"`
}

// SuperfluousText is decorative non-menu text separated out of the tree.
type SuperfluousText struct {
	Text       string  `json:"text"`
	Context    string  `json:"context,omitempty"`
	Confidence float64 `json:"confidence"`
}

// IsWellFormed reports whether the tree satisfies the minimum structural
// invariant: a non-empty category list.
func (r *ExtractionResult) IsWellFormed() bool {
	return r != nil && len(r.Categories) > 0
}

// ConfidenceValues collects every category and item confidence, recursing
// through subcategories, in tree order.
func (r *ExtractionResult) ConfidenceValues() []float64 {
	if r == nil {
		return nil
	}
	var values []float64
	var walk func(categories []MenuCategory)
	walk = func(categories []MenuCategory) {
		for _, category := range categories {
			values = append(values, category.Confidence)
			for _, item := range category.Items {
				values = append(values, item.Confidence)
			}
			walk(category.Subcategories)
		}
	}
	walk(r.Categories)
	return values
}

// EmptyCategories returns the names of categories with neither items nor
// subcategories, recursing through the tree.
func (r *ExtractionResult) EmptyCategories() []string {
	if r == nil {
		return nil
	}
	var names []string
	var walk func(categories []MenuCategory)
	walk = func(categories []MenuCategory) {
		for _, category := range categories {
			if len(category.Items) == 0 && len(category.Subcategories) == 0 {
				names = append(names, category.Name)
			}
			walk(category.Subcategories)
		}
	}
	walk(r.Categories)
	return names
}
