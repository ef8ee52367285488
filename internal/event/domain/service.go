package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// IngestRequest is the canonicalizer's input, already authenticated; the
// owning project travels on the request context.
type IngestRequest struct {
	EventType      string
	Timestamp      *time.Time
	TraceID        string
	IdempotencyKey *string
	Properties     map[string]any
}

// IngestResult reports acceptance. Sampled-out events are accepted but not
// persisted; both are success from the caller's perspective.
type IngestResult struct {
	Persisted bool
	EventID   snowflake.ID
}

// Service is the canonicalizer / ingestion gateway.
type Service interface {
	Ingest(ctx context.Context, req IngestRequest) (IngestResult, error)
	ListByTrace(ctx context.Context, traceID string) ([]WideEvent, error)
}

// Repository persists wide events. There is no update or delete path;
// the store is append-only.
type Repository interface {
	// Insert appends the event. When an idempotency key collides with an
	// already-stored event the insert is a no-op and inserted is false.
	Insert(ctx context.Context, db *gorm.DB, event *WideEvent) (inserted bool, err error)

	// FindByIdempotencyKey returns the previously stored event for a
	// retried ingestion.
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, projectID snowflake.ID, key string) (*WideEvent, error)

	// ListByTrace returns the trace group: all events sharing a trace id
	// within one project. Cross-project correlation is disallowed.
	ListByTrace(ctx context.Context, db *gorm.DB, projectID snowflake.ID, traceID string) ([]WideEvent, error)

	// ListBatch streams persisted events in id order for backfill.
	ListBatch(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]WideEvent, error)
}
