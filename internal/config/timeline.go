package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeline defaults.
const (
	DefaultDateTimeFormat = "d/m/Y H:i:s"
	DefaultLimit          = 10
	DefaultLocale         = "en"
	DefaultIcon           = "heroicon-m-check"
	DefaultIconColor      = "primary"
	DefaultCauserType     = `App\Models\User`
	DefaultCauserTable    = "users"
)

// Timeline is the immutable configuration handed to the timeline formatter,
// renderer and service.
type Timeline struct {
	DateTimeFormat      string
	CauserFieldName     string
	Limit               int
	Locale              string
	Location            *time.Location
	CacheTTL            time.Duration
	Icons               map[string]string
	IconColors          map[string]string
	SubjectTranslations map[string]string
	PropertyTranslates  map[string]map[string]string
	Causers             map[string]string
	Subjects            map[string]Subject
}

// Subject registers a model that can be viewed through the timeline under a
// URL alias.
type Subject struct {
	Type      string     `yaml:"type"`
	Table     string     `yaml:"table"`
	Relations []Relation `yaml:"relations"`
}

// Relation describes a has-many relation whose rows are matched through
// Type + ids selected by ForeignKey = parent id.
type Relation struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Table      string `yaml:"table"`
	ForeignKey string `yaml:"foreign_key"`
}

// Mappings is the YAML document carrying the map-shaped settings.
type Mappings struct {
	DateTimeFormat      string                       `yaml:"datetime_format"`
	CauserFieldName     string                       `yaml:"causer_field_name"`
	Limit               int                          `yaml:"limit"`
	Locale              string                       `yaml:"locale"`
	TimelineIcons       map[string]string            `yaml:"timeline_icons"`
	TimelineIconColors  map[string]string            `yaml:"timeline_icon_colors"`
	SubjectTranslations map[string]string            `yaml:"subject_translations"`
	PropertyTranslates  map[string]map[string]string `yaml:"property_translates"`
	Causers             map[string]string            `yaml:"causers"`
	Subjects            map[string]Subject           `yaml:"subjects"`
}

// LoadMappings reads the YAML mappings file. A missing file yields empty
// mappings.
func LoadMappings(path string) (Mappings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Mappings{}, nil
		}
		return Mappings{}, fmt.Errorf("read timeline mappings: %w", err)
	}

	return ParseMappings(data)
}

// ParseMappings decodes a mappings document.
func ParseMappings(data []byte) (Mappings, error) {
	var mappings Mappings
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return Mappings{}, fmt.Errorf("parse timeline mappings: %w", err)
	}
	return mappings, nil
}

// Apply merges file mappings over the environment values. Scalars from the
// file only win when set.
func (t *Timeline) Apply(m Mappings) {
	if m.DateTimeFormat != "" {
		t.DateTimeFormat = m.DateTimeFormat
	}
	if m.CauserFieldName != "" {
		t.CauserFieldName = m.CauserFieldName
	}
	if m.Limit > 0 {
		t.Limit = m.Limit
	}
	if m.Locale != "" {
		t.Locale = m.Locale
	}

	t.Icons = mergeStrings(t.Icons, m.TimelineIcons)
	t.IconColors = mergeStrings(t.IconColors, m.TimelineIconColors)
	t.SubjectTranslations = mergeStrings(t.SubjectTranslations, m.SubjectTranslations)
	t.Causers = mergeStrings(t.Causers, m.Causers)

	if len(m.PropertyTranslates) > 0 {
		if t.PropertyTranslates == nil {
			t.PropertyTranslates = make(map[string]map[string]string, len(m.PropertyTranslates))
		}
		for subjectType, translations := range m.PropertyTranslates {
			t.PropertyTranslates[subjectType] = mergeStrings(t.PropertyTranslates[subjectType], translations)
		}
	}

	if len(m.Subjects) > 0 {
		if t.Subjects == nil {
			t.Subjects = make(map[string]Subject, len(m.Subjects))
		}
		for alias, subject := range m.Subjects {
			t.Subjects[alias] = subject
		}
	}
}

// WithDefaults fills every unset value.
func (t Timeline) WithDefaults() Timeline {
	if t.DateTimeFormat == "" {
		t.DateTimeFormat = DefaultDateTimeFormat
	}
	if t.Limit <= 0 {
		t.Limit = DefaultLimit
	}
	if t.Locale == "" {
		t.Locale = DefaultLocale
	}
	if t.Location == nil {
		t.Location = time.UTC
	}
	if len(t.Causers) == 0 {
		t.Causers = map[string]string{DefaultCauserType: DefaultCauserTable}
	}
	return t
}

// Icon returns the icon configured for an event.
func (t Timeline) Icon(event string) string {
	if icon, ok := t.Icons[event]; ok && icon != "" {
		return icon
	}
	return DefaultIcon
}

// IconColor returns the icon color configured for an event.
func (t Timeline) IconColor(event string) string {
	if color, ok := t.IconColors[event]; ok && color != "" {
		return color
	}
	return DefaultIconColor
}

// TableFor resolves the table backing a subject or causer type.
func (t Timeline) TableFor(modelType string) (string, bool) {
	for _, subject := range t.Subjects {
		if subject.Type == modelType && subject.Table != "" {
			return subject.Table, true
		}
		for _, relation := range subject.Relations {
			if relation.Type == modelType && relation.Table != "" {
				return relation.Table, true
			}
		}
	}
	if table, ok := t.Causers[modelType]; ok && table != "" {
		return table, true
	}
	return "", false
}

// Relation looks up a named relation of the subject.
func (s Subject) Relation(name string) (Relation, bool) {
	for _, relation := range s.Relations {
		if relation.Name == name {
			return relation, true
		}
	}
	return Relation{}, false
}

func mergeStrings(base, overlay map[string]string) map[string]string {
	if len(overlay) == 0 {
		return base
	}
	if base == nil {
		base = make(map[string]string, len(overlay))
	}
	for key, value := range overlay {
		base[key] = value
	}
	return base
}
