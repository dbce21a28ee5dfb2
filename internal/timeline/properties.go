package timeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Values is one side of a change payload. Key order follows the logged JSON.
type Values = orderedmap.OrderedMap[string, interface{}]

// Properties is the decoded `{attributes, old}` payload of an activity.
type Properties struct {
	Attributes *Values
	Old        *Values
}

// NewValues returns an empty ordered value map.
func NewValues() *Values {
	return orderedmap.New[string, interface{}]()
}

// ParseProperties decodes a raw payload. Sections that are absent, null or not
// JSON objects are left nil; PHP encodes empty arrays as [] and those decode
// to empty maps.
func ParseProperties(raw []byte) (Properties, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Properties{}, nil
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return Properties{}, fmt.Errorf("decode activity properties: %w", err)
	}

	attributes, err := decodeSection(sections["attributes"])
	if err != nil {
		return Properties{}, fmt.Errorf("decode attributes: %w", err)
	}
	old, err := decodeSection(sections["old"])
	if err != nil {
		return Properties{}, fmt.Errorf("decode old values: %w", err)
	}

	return Properties{Attributes: attributes, Old: old}, nil
}

func decodeSection(raw json.RawMessage) (*Values, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if bytes.Equal(raw, []byte("[]")) {
		return NewValues(), nil
	}
	if raw[0] != '{' {
		return nil, nil
	}

	rawValues := orderedmap.New[string, json.RawMessage]()
	if err := rawValues.UnmarshalJSON(raw); err != nil {
		return nil, err
	}

	values := NewValues()
	for pair := rawValues.Oldest(); pair != nil; pair = pair.Next() {
		value, err := decodeValue(pair.Value)
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", pair.Key, err)
		}
		values.Set(pair.Key, value)
	}
	return values, nil
}

// decodeValue keeps numbers as json.Number, nested ones included, so large
// integers survive comparison and display.
func decodeValue(raw json.RawMessage) (interface{}, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

// Empty reports whether neither side carries a value.
func (p Properties) Empty() bool {
	return sectionLen(p.Attributes) == 0 && sectionLen(p.Old) == 0
}

// Clone copies both sections so callers can mutate the result freely.
func (p Properties) Clone() Properties {
	return Properties{Attributes: cloneValues(p.Attributes), Old: cloneValues(p.Old)}
}

// MarshalJSON keeps the section order stable.
func (p Properties) MarshalJSON() ([]byte, error) {
	payload := struct {
		Attributes *Values `json:"attributes,omitempty"`
		Old        *Values `json:"old,omitempty"`
	}{Attributes: p.Attributes, Old: p.Old}
	return json.Marshal(payload)
}

// UnmarshalJSON decodes the MarshalJSON form with the same rules as
// ParseProperties.
func (p *Properties) UnmarshalJSON(raw []byte) error {
	parsed, err := ParseProperties(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ClearUnchanged drops every key whose old and new values are strictly
// equal from both sides. Payloads missing either side are returned as is.
func ClearUnchanged(p Properties) Properties {
	if p.Attributes == nil || p.Old == nil {
		return p
	}

	cleared := p.Clone()
	for pair := p.Attributes.Oldest(); pair != nil; pair = pair.Next() {
		oldValue, ok := p.Old.Get(pair.Key)
		if !ok || !strictEqual(oldValue, pair.Value) {
			continue
		}
		cleared.Attributes.Delete(pair.Key)
		cleared.Old.Delete(pair.Key)
	}
	return cleared
}

// TranslateKeys renames keys through translations. Keys without an entry keep
// their raw name.
func TranslateKeys(p Properties, translations map[string]string) Properties {
	return Properties{
		Attributes: translateSection(p.Attributes, translations),
		Old:        translateSection(p.Old, translations),
	}
}

func translateSection(values *Values, translations map[string]string) *Values {
	if values == nil {
		return nil
	}
	translated := NewValues()
	for pair := values.Oldest(); pair != nil; pair = pair.Next() {
		key := pair.Key
		if label, ok := translations[key]; ok && label != "" {
			key = label
		}
		translated.Set(key, pair.Value)
	}
	return translated
}

func strictEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if x, ok := a.(json.Number); ok {
		return numbersEqual(x, b.(json.Number))
	}
	return reflect.DeepEqual(a, b)
}

// numbersEqual compares integers exactly and keeps integer and float literals
// apart, so 1 and 1.0 differ.
func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	x, errA := a.Int64()
	y, errB := b.Int64()
	if errA == nil || errB == nil {
		return errA == nil && errB == nil && x == y
	}
	fx, errA := a.Float64()
	fy, errB := b.Float64()
	return errA == nil && errB == nil && fx == fy
}

func cloneValues(values *Values) *Values {
	if values == nil {
		return nil
	}
	clone := NewValues()
	for pair := values.Oldest(); pair != nil; pair = pair.Next() {
		clone.Set(pair.Key, pair.Value)
	}
	return clone
}

func sectionLen(values *Values) int {
	if values == nil {
		return 0
	}
	return values.Len()
}
