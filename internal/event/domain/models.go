// Package domain contains the canonical wide-event model and its
// persistence contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Outcome values extracted into the first-class column.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ReservedNamespace is the property key under which system metadata nests in
// the serialized document. User properties can never collide with system
// fields because the namespace always wins at merge time.
const ReservedNamespace = "lumen"

// WideEvent is one record carrying the full context of one operation. Once
// accepted into storage it is immutable; corrections are new events.
type WideEvent struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProjectID snowflake.ID `gorm:"not null;index:idx_wide_events_project_trace,priority:1" json:"project_id"`
	EventType string       `gorm:"type:text;not null" json:"event_type"`

	// TraceID correlates events across service boundaries. Caller-supplied
	// (frontend-originated) or generated at ingestion; immutable either way.
	TraceID string `gorm:"type:text;not null;index:idx_wide_events_project_trace,priority:2" json:"trace_id"`

	// Timestamp is logical event time; IngestedAt is server receipt time
	// and is never caller-supplied.
	Timestamp  time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	IngestedAt time.Time `gorm:"not null" json:"ingested_at"`

	// StatusCode and Outcome are extracted from properties once at
	// ingestion and never re-derived.
	StatusCode *int64  `gorm:"" json:"status_code,omitempty"`
	Outcome    *string `gorm:"type:text" json:"outcome,omitempty"`

	IdempotencyKey *string           `gorm:"type:text" json:"-"`
	Properties     datatypes.JSONMap `gorm:"type:text;not null" json:"properties"`
}

// TableName sets the database table name.
func (WideEvent) TableName() string { return "wide_events" }

// Day returns the UTC date bucket that drives usage aggregation.
func (e *WideEvent) Day() string {
	return e.Timestamp.UTC().Format(DayFormat)
}

// DayFormat is the usage counter bucket key layout.
const DayFormat = "2006-01-02"

// Document serializes the event with user properties at the top level and
// system fields nested under the reserved namespace. System fields always
// take precedence over a colliding user key.
func (e *WideEvent) Document() map[string]any {
	doc := make(map[string]any, len(e.Properties)+1)
	for key, value := range e.Properties {
		doc[key] = value
	}

	system := map[string]any{
		"event_id":    e.ID.String(),
		"project_id":  e.ProjectID.String(),
		"event_type":  e.EventType,
		"trace_id":    e.TraceID,
		"timestamp":   e.Timestamp.UTC().Format(time.RFC3339Nano),
		"ingested_at": e.IngestedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.StatusCode != nil {
		system["status_code"] = *e.StatusCode
	}
	if e.Outcome != nil {
		system["outcome"] = *e.Outcome
	}
	doc[ReservedNamespace] = system
	return doc
}
