// Package events is the transactional outbox linking the ingest path to the
// usage aggregation worker.
package events

// EventPersisted signals that a wide event reached durable storage and must
// be applied to the usage counters exactly once.
const EventPersisted = "event.persisted"

// PersistedPayload carries the minimal data the aggregation worker needs.
type PersistedPayload struct {
	EventID    string `json:"event_id"`
	ProjectID  string `json:"project_id"`
	Day        string `json:"day"`
	IngestedAt string `json:"ingested_at"`
}

// ToMap converts the payload into an outbox-friendly map.
func (p PersistedPayload) ToMap() map[string]any {
	return map[string]any{
		"event_id":    p.EventID,
		"project_id":  p.ProjectID,
		"day":         p.Day,
		"ingested_at": p.IngestedAt,
	}
}
