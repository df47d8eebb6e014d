package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/schema"
)

const systemPrompt = `You are a meticulous menu digitization engine. You read restaurant menu photos and return structured data. Respond with exactly one JSON object. No prose, no markdown fences, no explanations.`

const baseInstructions = `Extract every menu item from the photo into the JSON structure below.

Rules:
- Group items under the categories printed on the menu; nest subcategories when the layout nests them.
- Report a confidence between 0 and 1 for every category and item.
- Text that looks like menu content but cannot be confidently structured goes into uncertain_items with a reason.
- Decorative or non-menu text (slogans, opening hours, wifi codes) goes into superfluous_text.
- currency_code is the ISO 4217 code of the prices on the menu.
- Never invent items, prices, or categories that are not visible.`

const v2Instructions = `
Version 2 structure:
- Items may carry size or preparation variants (each with its own price), modifier groups, additional info, and a type of "standard" or "set_menu".
- A set_menu item must include a set_menu body with its price and courses.
- Every item needs at least one of: a price, a variant, or a set_menu body.`

const exampleBlock = `
Example of a well-formed response (shortened):
{"categories":[{"name":"Starters","confidence":0.97,"items":[{"name":"Tomato Soup","price":6.5,"confidence":0.95,"description":"with basil oil"}]}],"currency_code":"EUR","uncertain_items":[{"text":"Ask about our catch of the day","reason":"no price or fixed name","confidence":0.4}],"superfluous_text":[{"text":"Est. 1987","context":"header","confidence":0.9}]}`

// buildExtractionInstructions assembles the user-message text: instructions,
// the JSON-Schema the response must satisfy, and optionally a worked
// example. The degraded profile drops the example to shrink the prompt.
func buildExtractionInstructions(version domain.SchemaVersion, promptVersion string, includeExamples bool) string {
	var b strings.Builder
	b.WriteString(baseInstructions)
	if version == domain.SchemaV2 {
		b.WriteString(v2Instructions)
	}
	b.WriteString("\n\nThe response must satisfy this JSON Schema:\n")
	b.WriteString(mustJSON(schema.BuildMenuSchema(version)))
	if includeExamples {
		b.WriteString("\n")
		b.WriteString(exampleBlock)
	}
	if promptVersion != "" {
		fmt.Fprintf(&b, "\n\nprompt_version: %s", promptVersion)
	}
	return b.String()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
