package providers

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Normalize decodes raw and returns a Generation whose Text is the first
// non-empty candidate field. Candidates are dot-separated paths; numeric
// segments index into arrays (e.g. "choices.0.message.content").
func Normalize(raw []byte, candidates []string) *Generation {
	return &Generation{
		Text: ExtractText(raw, candidates),
		Raw:  json.RawMessage(raw),
	}
}

// ExtractText returns the first candidate path resolving to a non-blank
// string, or "" when none does or raw is not JSON.
func ExtractText(raw []byte, candidates []string) string {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	for _, path := range candidates {
		if s, ok := lookup(doc, path).(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func lookup(doc interface{}, path string) interface{} {
	cur := doc
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			cur = node[seg]
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}
