package timeline

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ChangeKind tells which sides of the payload carried a key.
type ChangeKind string

const (
	// ChangeModified marks a key present on both sides with differing values.
	ChangeModified ChangeKind = "modified"
	// ChangeAdded marks a key present only in the new attributes.
	ChangeAdded ChangeKind = "added"
	// ChangeRemoved marks a key present only in the old values.
	ChangeRemoved ChangeKind = "removed"
)

// Normalized literals.
const (
	TextTrue  = "True"
	TextFalse = "False"
	TextNull  = "Null"
)

// Change is one line of the change list.
type Change struct {
	Key  string     `json:"key"`
	Old  string     `json:"old,omitempty"`
	New  string     `json:"new,omitempty"`
	Kind ChangeKind `json:"kind"`
}

// Value returns the side shown on single-sided lines.
func (c Change) Value() string {
	if c.Kind == ChangeRemoved {
		return c.Old
	}
	return c.New
}

// String renders the plain text line.
func (c Change) String() string {
	if c.Kind == ChangeModified {
		return fmt.Sprintf("- %s from %s to %s", c.Key, c.Old, c.New)
	}
	return fmt.Sprintf("- %s %s", c.Key, c.Value())
}

// BuildChanges maps a cleaned payload to change lines. Keys on both sides
// produce a modified line when the normalized values differ; pairs that both
// normalize to null are skipped. Keys on one side produce a single-sided line.
// Attribute order comes first, then keys that only exist in the old values.
func BuildChanges(p Properties) []Change {
	changes := make([]Change, 0, sectionLen(p.Attributes)+sectionLen(p.Old))

	if p.Attributes != nil {
		for pair := p.Attributes.Oldest(); pair != nil; pair = pair.Next() {
			newText, newNull := NormalizeValue(pair.Value)

			if p.Old != nil {
				if oldValue, ok := p.Old.Get(pair.Key); ok {
					oldText, oldNull := NormalizeValue(oldValue)
					if oldNull && newNull {
						continue
					}
					if oldText != newText {
						changes = append(changes, Change{Key: pair.Key, Old: oldText, New: newText, Kind: ChangeModified})
					}
					continue
				}
			}

			changes = append(changes, Change{Key: pair.Key, New: newText, Kind: ChangeAdded})
		}
	}

	if p.Old != nil {
		for pair := p.Old.Oldest(); pair != nil; pair = pair.Next() {
			if p.Attributes != nil {
				if _, ok := p.Attributes.Get(pair.Key); ok {
					continue
				}
			}
			oldText, _ := NormalizeValue(pair.Value)
			changes = append(changes, Change{Key: pair.Key, Old: oldText, Kind: ChangeRemoved})
		}
	}

	return changes
}

// NormalizeValue turns a payload value into display text. Booleans and the
// strings "0"/"1" become True/False, nil becomes Null and nested structures
// are JSON encoded. The second result reports a null value.
func NormalizeValue(value interface{}) (string, bool) {
	switch v := value.(type) {
	case nil:
		return TextNull, true
	case bool:
		if v {
			return TextTrue, false
		}
		return TextFalse, false
	case string:
		switch v {
		case "1":
			return TextTrue, false
		case "0":
			return TextFalse, false
		}
		return v, false
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), false
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), false
	case int:
		return strconv.Itoa(v), false
	case int64:
		return strconv.FormatInt(v, 10), false
	case json.Number:
		return v.String(), false
	case map[string]interface{}, []interface{}, *Values:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), false
		}
		return string(encoded), false
	default:
		return fmt.Sprintf("%v", v), false
	}
}
