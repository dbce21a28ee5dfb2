package timeline

import (
	"strings"
	"time"

	"github.com/noah-isme/gema-activity-timeline/internal/config"
	"github.com/noah-isme/gema-activity-timeline/internal/models"
)

// UnknownName is shown when a causer or subject cannot be resolved.
const UnknownName = "Unknown"

var causerNameFields = []string{"name", "first_name", "last_name", "username"}

// Entry is the template-ready state of one activity.
type Entry struct {
	ID             uint       `json:"id"`
	Event          string     `json:"event"`
	EventLabel     string     `json:"event_label"`
	Icon           string     `json:"icon"`
	Color          string     `json:"color"`
	LogName        string     `json:"log_name,omitempty"`
	Description    string     `json:"description,omitempty"`
	BatchUUID      string     `json:"batch_uuid,omitempty"`
	SubjectType    string     `json:"subject_type"`
	SubjectID      uint       `json:"subject_id"`
	SubjectLabel   string     `json:"subject_label"`
	SubjectMissing bool       `json:"subject_missing"`
	Related        bool       `json:"related"`
	CauserName     string     `json:"causer_name"`
	Properties     Properties `json:"properties"`
	Changes        []Change   `json:"changes"`
	Title          string     `json:"title"`
	Sentence       string     `json:"sentence"`
	Since          string     `json:"since"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CreatedAt      time.Time  `json:"created_at"`
	FormattedAt    string     `json:"formatted_at"`
}

// Lines returns the plain text change lines.
func (e Entry) Lines() []string {
	lines := make([]string, 0, len(e.Changes))
	for _, change := range e.Changes {
		lines = append(lines, change.String())
	}
	return lines
}

// Formatter turns stored activities into entries. It holds no mutable state.
type Formatter struct {
	settings config.Timeline
	dates    DateFormatter
}

// NewFormatter builds a formatter from the timeline settings.
func NewFormatter(settings config.Timeline) *Formatter {
	settings = settings.WithDefaults()
	return &Formatter{
		settings: settings,
		dates:    NewDateFormatter(settings.DateTimeFormat, settings.Location),
	}
}

// Dates exposes the configured date formatter.
func (f *Formatter) Dates() DateFormatter {
	return f.dates
}

// Format builds the entry for activity as seen from root. The second result is
// false when the payload carries no real change and the entry must be
// suppressed.
func (f *Formatter) Format(activity models.Activity, root models.Record) (Entry, bool) {
	properties, err := ParseProperties(activity.Properties)
	if err != nil {
		return Entry{}, false
	}

	properties = f.dates.FormatProperties(ClearUnchanged(properties))
	if properties.Empty() {
		return Entry{}, false
	}

	translated := TranslateKeys(properties, f.settings.PropertyTranslates[activity.SubjectType])
	changes := BuildChanges(translated)

	updatedAt := activity.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = activity.CreatedAt
	}

	entry := Entry{
		ID:             activity.ID,
		Event:          activity.Event,
		Icon:           f.settings.Icon(activity.Event),
		Color:          f.settings.IconColor(activity.Event),
		LogName:        activity.LogName,
		Description:    activity.Description,
		SubjectType:    activity.SubjectType,
		SubjectID:      activity.SubjectKey(),
		SubjectLabel:   SubjectLabel(activity.SubjectType, f.settings.SubjectTranslations),
		SubjectMissing: activity.Subject == nil,
		Related:        activity.SubjectType != root.Type || activity.SubjectKey() != root.ID,
		CauserName:     CauserName(activity.Causer, f.settings.CauserFieldName),
		Properties:     properties,
		Changes:        changes,
		UpdatedAt:      updatedAt,
		CreatedAt:      activity.CreatedAt,
		FormattedAt:    f.dates.Format(updatedAt),
	}
	if activity.BatchUUID != nil {
		entry.BatchUUID = activity.BatchUUID.String()
	}

	return entry, true
}

// SubjectLabel returns the configured label for a subject type, or the last
// segment of its class name.
func SubjectLabel(subjectType string, translations map[string]string) string {
	if subjectType == "" {
		return UnknownName
	}
	if label, ok := translations[subjectType]; ok && label != "" {
		return label
	}
	if idx := strings.LastIndex(subjectType, `\`); idx >= 0 {
		return subjectType[idx+1:]
	}
	return subjectType
}

// CauserName resolves the display name of a causer. A configured field wins;
// otherwise name, first_name, last_name and username are tried in turn.
func CauserName(causer *models.Record, field string) string {
	if causer == nil {
		return UnknownName
	}
	if field != "" {
		if value, ok := causer.String(field); ok {
			return value
		}
		return UnknownName
	}
	for _, candidate := range causerNameFields {
		if value, ok := causer.String(candidate); ok {
			return value
		}
	}
	return UnknownName
}
