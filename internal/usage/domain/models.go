// Package domain contains the incrementally-maintained usage counters that
// drive quota enforcement.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// DayFormat is the counter bucket key layout (UTC date of event time).
const DayFormat = "2006-01-02"

// DayOf returns the bucket key for an instant.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayFormat)
}

// UsageCounter counts retained events per (project, day). Counts are
// unsigned and monotonically non-decreasing; no decrement operation exists.
type UsageCounter struct {
	ProjectID snowflake.ID `gorm:"primaryKey" json:"project_id"`
	Day       string       `gorm:"primaryKey;type:text" json:"day"`
	Count     uint64       `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time    `gorm:"not null" json:"-"`
	UpdatedAt time.Time    `gorm:"not null" json:"-"`
}

// TableName sets the database table name.
func (UsageCounter) TableName() string { return "usage_counters" }

// Aggregator is the reducer invoked once per persisted event. The live
// worker and the backfill replay both speak this contract, which keeps the
// two modes interchangeable.
type Aggregator interface {
	Apply(ctx context.Context, db *gorm.DB, projectID snowflake.ID, day string) error
}

// Repository is the counter store. The only mutation is an atomic
// increment executed inside the database, never an application-layer
// read-modify-write.
type Repository interface {
	// Increment adds n to the (project, day) bucket, creating it on first
	// touch, as a single atomic upsert.
	Increment(ctx context.Context, db *gorm.DB, projectID snowflake.ID, day string, n uint64) error

	// TotalForPeriod sums counters with start <= day < end.
	TotalForPeriod(ctx context.Context, db *gorm.DB, projectID snowflake.ID, start, end time.Time) (uint64, error)

	// ListDays returns per-day counters for the period, oldest first.
	ListDays(ctx context.Context, db *gorm.DB, projectID snowflake.ID, start, end time.Time) ([]UsageCounter, error)

	// HasAny reports whether any counter row exists; backfill refuses to
	// run against a populated table.
	HasAny(ctx context.Context, db *gorm.DB) (bool, error)
}
