package dto

import (
	"time"

	"github.com/noah-isme/gema-activity-timeline/internal/timeline"
)

// TimelineRequest describes the query for one subject's timeline.
type TimelineRequest struct {
	Subject   string   `validate:"required,max=64"`
	SubjectID uint     `validate:"required,gt=0"`
	Relations []string `validate:"omitempty,max=16,dive,required,max=64"`
	Limit     int      `validate:"omitempty,min=1,max=100"`
	Locale    string   `validate:"omitempty,oneof=en cs"`
}

// TimelineSubject identifies the record the timeline was built for.
type TimelineSubject struct {
	Alias  string `json:"alias"`
	Type   string `json:"type"`
	ID     uint   `json:"id"`
	Label  string `json:"label"`
	Exists bool   `json:"exists"`
}

// TimelineChange is one change line of an entry.
type TimelineChange struct {
	Key  string `json:"key"`
	Old  string `json:"old,omitempty"`
	New  string `json:"new,omitempty"`
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// TimelineEntryResponse serializes a rendered timeline entry.
type TimelineEntryResponse struct {
	ID           uint             `json:"id"`
	Event        string           `json:"event"`
	EventLabel   string           `json:"event_label"`
	Icon         string           `json:"icon"`
	Color        string           `json:"color"`
	LogName      string           `json:"log_name,omitempty"`
	Description  string           `json:"description,omitempty"`
	BatchUUID    string           `json:"batch_uuid,omitempty"`
	SubjectType  string           `json:"subject_type"`
	SubjectID    uint             `json:"subject_id"`
	SubjectLabel string           `json:"subject_label"`
	Related      bool             `json:"related"`
	CauserName   string           `json:"causer_name"`
	Title        string           `json:"title"`
	Sentence     string           `json:"sentence"`
	Since        string           `json:"since"`
	Changes      []TimelineChange `json:"changes"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// TimelineResponse wraps a rendered timeline.
type TimelineResponse struct {
	Subject     TimelineSubject         `json:"subject"`
	Locale      string                  `json:"locale"`
	Heading     string                  `json:"heading"`
	Description string                  `json:"description"`
	Limit       int                     `json:"limit"`
	Entries     []TimelineEntryResponse `json:"entries"`
	CacheHit    bool                    `json:"cache_hit"`
}

// NewTimelineEntryResponse converts a rendered entry into its DTO.
func NewTimelineEntryResponse(entry timeline.Entry) TimelineEntryResponse {
	changes := make([]TimelineChange, 0, len(entry.Changes))
	for _, change := range entry.Changes {
		changes = append(changes, TimelineChange{
			Key:  change.Key,
			Old:  change.Old,
			New:  change.New,
			Kind: string(change.Kind),
			Text: change.String(),
		})
	}

	return TimelineEntryResponse{
		ID:           entry.ID,
		Event:        entry.Event,
		EventLabel:   entry.EventLabel,
		Icon:         entry.Icon,
		Color:        entry.Color,
		LogName:      entry.LogName,
		Description:  entry.Description,
		BatchUUID:    entry.BatchUUID,
		SubjectType:  entry.SubjectType,
		SubjectID:    entry.SubjectID,
		SubjectLabel: entry.SubjectLabel,
		Related:      entry.Related,
		CauserName:   entry.CauserName,
		Title:        entry.Title,
		Sentence:     entry.Sentence,
		Since:        entry.Since,
		Changes:      changes,
		UpdatedAt:    entry.UpdatedAt,
	}
}
