package models

import (
	"fmt"
	"strings"
)

// Record is a row addressed through a polymorphic (type, id) reference and
// loaded as its raw column values.
type Record struct {
	Type       string                 `json:"type"`
	ID         uint                   `json:"id"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// String returns the named attribute as trimmed text. Missing, nil and blank
// values report false.
func (r *Record) String(key string) (string, bool) {
	if r == nil || r.Attributes == nil {
		return "", false
	}
	value, ok := r.Attributes[key]
	if !ok || value == nil {
		return "", false
	}

	var text string
	switch v := value.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		text = fmt.Sprintf("%v", v)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	return text, true
}
