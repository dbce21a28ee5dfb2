package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Activity event kinds written by the audit logger.
const (
	ActivityEventCreated = "created"
	ActivityEventUpdated = "updated"
	ActivityEventDeleted = "deleted"
)

// Activity is one row of the append-only activity log. Rows are produced by the
// audit logger on every tracked mutation and are only ever read here.
type Activity struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	LogName     string         `gorm:"size:191;index" json:"log_name"`
	Description string         `gorm:"type:text" json:"description"`
	SubjectType string         `gorm:"size:191;index:idx_activity_subject" json:"subject_type"`
	SubjectID   *uint          `gorm:"index:idx_activity_subject" json:"subject_id"`
	Event       string         `gorm:"size:32" json:"event"`
	CauserType  string         `gorm:"size:191;index:idx_activity_causer" json:"causer_type"`
	CauserID    *uint          `gorm:"index:idx_activity_causer" json:"causer_id"`
	Properties  datatypes.JSON `json:"properties"`
	BatchUUID   *uuid.UUID     `gorm:"type:uuid" json:"batch_uuid"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Subject *Record `gorm:"-" json:"-"`
	Causer  *Record `gorm:"-" json:"-"`
}

// TableName keeps the table name used by the audit logger.
func (Activity) TableName() string {
	return "activity_log"
}

// SubjectKey returns the subject id or zero when the row has none.
func (a Activity) SubjectKey() uint {
	if a.SubjectID == nil {
		return 0
	}
	return *a.SubjectID
}

// CauserKey returns the causer id or zero when the row has none.
func (a Activity) CauserKey() uint {
	if a.CauserID == nil {
		return 0
	}
	return *a.CauserID
}
