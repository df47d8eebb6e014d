package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxSalvageDepth bounds how deeply nested a brace-trimmed document may be
// before we stop trusting it: truncation deep inside the tree can close into
// a structurally valid but wrong shape, and menus never legitimately nest
// this far.
const maxSalvageDepth = 24

// extractSingleJSONObject expects exactly one JSON object in the model's
// textual output. On a parse failure it makes a single salvage attempt by
// trimming the text to its last closing brace; the salvaged form is only
// accepted if it re-parses and stays within a sane nesting depth.
func extractSingleJSONObject(content string) ([]byte, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("empty response text")
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}
	text = text[start:]

	if obj, ok := parseObject(text); ok {
		return obj, nil
	}

	end := strings.LastIndex(text, "}")
	if end <= 0 {
		return nil, fmt.Errorf("response is not a JSON object")
	}
	trimmed := text[:end+1]
	if obj, ok := parseObject(trimmed); ok {
		if depth := jsonDepth(obj); depth > maxSalvageDepth {
			return nil, fmt.Errorf("salvaged JSON nests %d levels deep, refusing to trust it", depth)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("response is not a single JSON object")
}

func parseObject(text string) ([]byte, bool) {
	var probe map[string]json.RawMessage
	decoder := json.NewDecoder(strings.NewReader(text))
	if err := decoder.Decode(&probe); err != nil {
		return nil, false
	}
	// Exactly one object: anything but whitespace after it is a failure.
	var trailing json.RawMessage
	if err := decoder.Decode(&trailing); !errors.Is(err, io.EOF) {
		return nil, false
	}
	return []byte(strings.TrimSpace(text)), true
}

func jsonDepth(raw []byte) int {
	depth, max := 0, 0
	inString, escaped := false, false
	for _, b := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > max {
				max = depth
			}
		case '}', ']':
			depth--
		}
	}
	return max
}
