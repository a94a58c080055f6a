package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LocalizedText resolves a GBFS text value, preferring language when the
// value is a localized list.
func LocalizedText(v any, language string) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case []any:
		first := ""
		for i, item := range t {
			obj, ok := item.(map[string]any)
			if !ok {
				return "", fmt.Errorf("localized entry %d is not an object", i)
			}
			text, ok := obj["text"].(string)
			if !ok {
				return "", fmt.Errorf("localized entry %d has no text", i)
			}
			lang, _ := obj["language"].(string)
			if language != "" && strings.EqualFold(lang, language) {
				return text, nil
			}
			if i == 0 {
				first = text
			}
		}
		return first, nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}
