package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON document out of model output. Models frequently
// wrap the requested JSON in prose or code fences, so after a direct parse
// fails we scan for the outermost object or array.
func ExtractJSON(text string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(text)
	if json.Valid([]byte(trimmed)) && trimmed != "" {
		return json.RawMessage(trimmed), nil
	}

	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(trimmed, pair[0])
		end := strings.LastIndexByte(trimmed, pair[1])
		if start == -1 || end <= start {
			continue
		}
		candidate := trimmed[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), nil
		}
	}

	return nil, fmt.Errorf("no valid JSON found in model output")
}
