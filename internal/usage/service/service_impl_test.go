package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/lumenlabs/lumen/internal/event/domain"
	eventrepository "github.com/lumenlabs/lumen/internal/event/repository"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/migration"
	usagedomain "github.com/lumenlabs/lumen/internal/usage/domain"
	usagerepository "github.com/lumenlabs/lumen/internal/usage/repository"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupUsageService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := migration.RunMigrations(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := &Service{
		db:        db,
		log:       zap.NewNop(),
		usagerepo: usagerepository.Provide(),
		eventrepo: eventrepository.Provide(),
		outbox:    events.NewOutbox(db, node),
	}
	return svc, db
}

func insertEvent(t *testing.T, db *gorm.DB, id, projectID snowflake.ID, at time.Time) {
	t.Helper()
	event := eventdomain.WideEvent{
		ID:         id,
		ProjectID:  projectID,
		EventType:  "api.request",
		TraceID:    "0123456789abcdef0123456789abcdef",
		Timestamp:  at,
		IngestedAt: at,
		Properties: map[string]any{},
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("insert event %d: %v", id, err)
	}
}

func TestApplyIncrementsOne(t *testing.T) {
	svc, db := setupUsageService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Apply(ctx, nil, 7, "2026-03-15"); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	var counter usagedomain.UsageCounter
	if err := db.First(&counter, "project_id = ? AND day = ?", 7, "2026-03-15").Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if counter.Count != 3 {
		t.Fatalf("expected count 3, got %d", counter.Count)
	}
}

func TestBackfillFoldsEventLog(t *testing.T) {
	svc, db := setupUsageService(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	insertEvent(t, db, 1, 7, day1)
	insertEvent(t, db, 2, 7, day1)
	insertEvent(t, db, 3, 7, day2)
	insertEvent(t, db, 4, 8, day2)

	applied, skipped, err := svc.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if skipped {
		t.Fatalf("expected backfill to run against empty counters")
	}
	if applied != 4 {
		t.Fatalf("expected 4 events applied, got %d", applied)
	}

	checks := []struct {
		projectID snowflake.ID
		day       string
		want      uint64
	}{
		{7, "2026-03-14", 2},
		{7, "2026-03-15", 1},
		{8, "2026-03-15", 1},
	}
	for _, check := range checks {
		var counter usagedomain.UsageCounter
		if err := db.First(&counter, "project_id = ? AND day = ?", check.projectID, check.day).Error; err != nil {
			t.Fatalf("load counter %d/%s: %v", check.projectID, check.day, err)
		}
		if counter.Count != check.want {
			t.Fatalf("counter %d/%s: expected %d, got %d", check.projectID, check.day, check.want, counter.Count)
		}
	}
}

func TestBackfillSkipsWhenPopulated(t *testing.T) {
	svc, db := setupUsageService(t)
	ctx := context.Background()

	insertEvent(t, db, 1, 7, time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC))
	if err := svc.Apply(ctx, nil, 7, "2026-03-15"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	applied, skipped, err := svc.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if !skipped {
		t.Fatalf("expected backfill skipped against populated counters")
	}
	if applied != 0 {
		t.Fatalf("expected 0 applied, got %d", applied)
	}

	var counter usagedomain.UsageCounter
	if err := db.First(&counter, "project_id = ? AND day = ?", 7, "2026-03-15").Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if counter.Count != 1 {
		t.Fatalf("skipped backfill must not touch counters, got %d", counter.Count)
	}
}

func TestBackfillRetiresPendingSignals(t *testing.T) {
	svc, db := setupUsageService(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	insertEvent(t, db, 42, 7, at)
	err := svc.outbox.Publish(ctx, events.Event{
		ProjectID: 7,
		Type:      events.EventPersisted,
		Payload: map[string]any{
			"project_id": snowflake.ID(7).String(),
			"day":        "2026-03-15",
		},
		DedupeKey: snowflake.ID(42).String(),
	})
	if err != nil {
		t.Fatalf("publish signal: %v", err)
	}

	applied, skipped, err := svc.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if skipped || applied != 1 {
		t.Fatalf("expected 1 applied, got applied=%d skipped=%v", applied, skipped)
	}

	// The folded event's signal must be claimed so the live worker cannot
	// apply it on top of the fold.
	backlog, err := svc.outbox.Backlog(ctx, events.EventPersisted)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if backlog != 0 {
		t.Fatalf("expected pending signal retired by backfill, backlog=%d", backlog)
	}
}

func TestBackfillMatchesLiveTotals(t *testing.T) {
	svc, db := setupUsageService(t)
	ctx := context.Background()

	at := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	const events = 12
	for i := 1; i <= events; i++ {
		insertEvent(t, db, snowflake.ID(i), 7, at)
	}

	if _, _, err := svc.Backfill(ctx); err != nil {
		t.Fatalf("backfill: %v", err)
	}

	total, err := svc.TotalForPeriod(ctx, 7, at.AddDate(0, 0, -1), at.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total != events {
		t.Fatalf("expected total %d, got %d", events, total)
	}

	days, err := svc.DailyUsage(ctx, 7, at.AddDate(0, 0, -1), at.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("daily usage: %v", err)
	}
	if len(days) != 1 || days[0].Count != events {
		t.Fatalf("expected one bucket of %d, got %+v", events, days)
	}
}
