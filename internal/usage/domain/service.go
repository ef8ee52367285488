package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service maintains and reads the usage counters. Apply is the live
// incremental mode; Backfill replays the full event log once.
type Service interface {
	Aggregator

	// DailyUsage returns the per-day counters for a period.
	DailyUsage(ctx context.Context, projectID snowflake.ID, start, end time.Time) ([]UsageCounter, error)

	// TotalForPeriod sums retained events over a period.
	TotalForPeriod(ctx context.Context, projectID snowflake.ID, start, end time.Time) (uint64, error)

	// Backfill rebuilds counters from the persisted event log. It refuses
	// to run when any counter exists (skipped=true), so a restart can
	// never double-count.
	Backfill(ctx context.Context) (applied int64, skipped bool, err error)
}
