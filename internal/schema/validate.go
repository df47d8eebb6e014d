package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
)

// FieldError is one path-qualified validation failure.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

var (
	compileOnce sync.Once
	compiled    map[domain.SchemaVersion]*jsonschema.Schema
	compileErr  error
)

func compiledSchema(version domain.SchemaVersion) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[domain.SchemaVersion]*jsonschema.Schema, 2)
		for _, v := range []domain.SchemaVersion{domain.SchemaV1, domain.SchemaV2} {
			b, err := json.Marshal(BuildMenuSchema(v))
			if err != nil {
				compileErr = fmt.Errorf("marshal %s schema: %w", v, err)
				return
			}
			compiler := jsonschema.NewCompiler()
			name := fmt.Sprintf("menu-%s.json", v)
			if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
				compileErr = fmt.Errorf("add %s schema: %w", v, err)
				return
			}
			s, err := compiler.Compile(name)
			if err != nil {
				compileErr = fmt.Errorf("compile %s schema: %w", v, err)
				return
			}
			compiled[v] = s
		}
	})
	if compileErr != nil {
		return nil, compileErr
	}
	s, ok := compiled[version]
	if !ok {
		return nil, fmt.Errorf("unknown schema version %q", version)
	}
	return s, nil
}

// Validate checks raw model output against the schema named by version and,
// when it passes, decodes it into the domain tree. On failure it returns the
// path-qualified errors; the caller decides whether to attempt salvage.
func Validate(raw []byte, version domain.SchemaVersion) (*domain.ExtractionResult, []FieldError) {
	s, err := compiledSchema(version)
	if err != nil {
		return nil, []FieldError{{Message: err.Error()}}
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, []FieldError{{Message: fmt.Sprintf("not valid JSON: %v", err)}}
	}

	if err := s.Validate(value); err != nil {
		return nil, fieldErrors(err)
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, []FieldError{{Message: fmt.Sprintf("decode result: %v", err)}}
	}

	if errs := checkVersionRules(&result, version); len(errs) > 0 {
		return nil, errs
	}
	return &result, nil
}

// checkVersionRules enforces the conditional invariants that live outside
// JSON-Schema: under v2 an item needs at least one of price, a variant, or a
// set-menu body, and type=set_menu requires the set-menu body.
func checkVersionRules(result *domain.ExtractionResult, version domain.SchemaVersion) []FieldError {
	if version != domain.SchemaV2 {
		return nil
	}
	var errs []FieldError
	var walk func(path string, categories []domain.MenuCategory)
	walk = func(path string, categories []domain.MenuCategory) {
		for ci, category := range categories {
			base := fmt.Sprintf("%s/%d", path, ci)
			for ii, item := range category.Items {
				itemPath := fmt.Sprintf("%s/items/%d", base, ii)
				if item.Price == nil && len(item.Variants) == 0 && item.SetMenu == nil {
					errs = append(errs, FieldError{
						Path:    itemPath,
						Message: "item needs a price, a variant, or a set menu",
					})
				}
				if item.Type == domain.ItemTypeSetMenu && item.SetMenu == nil {
					errs = append(errs, FieldError{
						Path:    itemPath + "/set_menu",
						Message: "type is set_menu but set_menu body is missing",
					})
				}
			}
			walk(base+"/subcategories", category.Subcategories)
		}
	}
	walk("/categories", result.Categories)
	return errs
}

func fieldErrors(err error) []FieldError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldError{{Message: err.Error()}}
	}
	out := ve.BasicOutput()
	var errs []FieldError
	for _, e := range out.Errors {
		// The basic output interleaves branch summaries; keep leaves only.
		if e.Error == "" || e.KeywordLocation == "" {
			continue
		}
		errs = append(errs, FieldError{Path: e.InstanceLocation, Message: e.Error})
	}
	if len(errs) == 0 {
		errs = append(errs, FieldError{Message: ve.Error()})
	}
	return errs
}
