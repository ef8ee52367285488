package worker

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
	usageservice "github.com/lumenlabs/lumen/internal/usage/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Worker, *events.Outbox, *gorm.DB) {
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
	outbox := events.NewOutbox(db, node)
	aggregator := usageservice.NewService(usageservice.ServiceParam{
		DB:        db,
		Log:       zap.NewNop(),
		UsageRepo: usagerepository.Provide(),
		EventRepo: eventrepository.Provide(),
		Outbox:    outbox,
	})
	worker := NewWorker(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Outbox:     outbox,
		Aggregator: aggregator,
		Config:     Config{BatchSize: 10},
	})
	return worker, outbox, db
}

func publishSignal(t *testing.T, outbox *events.Outbox, projectID snowflake.ID, day, dedupe string) {
	t.Helper()
	err := outbox.Publish(context.Background(), events.Event{
		ProjectID: projectID,
		Type:      events.EventPersisted,
		Payload: map[string]any{
			"project_id": projectID.String(),
			"day":        day,
		},
		DedupeKey: dedupe,
	})
	if err != nil {
		t.Fatalf("publish signal: %v", err)
	}
}

func TestRunOnceAppliesSignals(t *testing.T) {
	worker, outbox, db := setupWorkerTest(t)
	ctx := context.Background()

	publishSignal(t, outbox, 7, "2026-03-15", "evt-1")
	publishSignal(t, outbox, 7, "2026-03-15", "evt-2")
	publishSignal(t, outbox, 8, "2026-03-16", "evt-3")

	processed, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 3 {
		t.Fatalf("expected 3 processed, got %d", processed)
	}

	var counter usagedomain.UsageCounter
	if err := db.First(&counter, "project_id = ? AND day = ?", 7, "2026-03-15").Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if counter.Count != 2 {
		t.Fatalf("expected count 2 for project 7, got %d", counter.Count)
	}
	counter = usagedomain.UsageCounter{}
	if err := db.First(&counter, "project_id = ? AND day = ?", 8, "2026-03-16").Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if counter.Count != 1 {
		t.Fatalf("expected count 1 for project 8, got %d", counter.Count)
	}
}

func TestRunOnceIsExactlyOnce(t *testing.T) {
	worker, outbox, db := setupWorkerTest(t)
	ctx := context.Background()

	publishSignal(t, outbox, 7, "2026-03-15", "evt-1")

	if _, err := worker.RunOnce(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	processed, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if processed != 0 {
		t.Fatalf("a claimed signal must never be applied twice, got %d", processed)
	}

	var counter usagedomain.UsageCounter
	if err := db.First(&counter, "project_id = ? AND day = ?", 7, "2026-03-15").Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if counter.Count != 1 {
		t.Fatalf("expected count 1, got %d", counter.Count)
	}
}

func TestRunOnceDropsMalformedPayload(t *testing.T) {
	worker, outbox, db := setupWorkerTest(t)
	ctx := context.Background()

	publishSignal(t, outbox, 7, "", "evt-broken")
	publishSignal(t, outbox, 7, "2026-03-15", "evt-ok")

	processed, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 1 {
		t.Fatalf("expected only the valid signal applied, got %d", processed)
	}

	// The malformed row stays claimed so it cannot wedge the queue.
	backlog, err := outbox.Backlog(ctx, events.EventPersisted)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if backlog != 0 {
		t.Fatalf("expected empty backlog, got %d", backlog)
	}

	var count int64
	if err := db.Model(&usagedomain.UsageCounter{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single counter row, got %d", count)
	}
}

func TestBackfillThenRunOnceCountsOnce(t *testing.T) {
	worker, outbox, db := setupWorkerTest(t)
	ctx := context.Background()

	// A persisted event whose aggregation signal has not been claimed yet:
	// the fold must retire the signal, or the two modes each count it.
	at := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	event := eventdomain.WideEvent{
		ID:         42,
		ProjectID:  7,
		EventType:  "api.request",
		TraceID:    "0123456789abcdef0123456789abcdef",
		Timestamp:  at,
		IngestedAt: at,
		Properties: map[string]any{},
	}
	if err := db.Create(&event).Error; err != nil {
		t.Fatalf("insert event: %v", err)
	}
	publishSignal(t, outbox, 7, "2026-03-15", snowflake.ID(42).String())

	applied, skipped, err := worker.aggregator.Backfill(ctx)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if skipped || applied != 1 {
		t.Fatalf("expected 1 applied, got applied=%d skipped=%v", applied, skipped)
	}

	processed, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 0 {
		t.Fatalf("backfilled event must not be applied again, got %d", processed)
	}

	var counter usagedomain.UsageCounter
	if err := db.First(&counter, "project_id = ? AND day = ?", 7, "2026-03-15").Error; err != nil {
		t.Fatalf("load counter: %v", err)
	}
	if counter.Count != 1 {
		t.Fatalf("one persisted event must count once, got %d", counter.Count)
	}
}

func TestRunOnceRespectsBatchSize(t *testing.T) {
	worker, outbox, _ := setupWorkerTest(t)
	worker.cfg.BatchSize = 2
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		publishSignal(t, outbox, 7, "2026-03-15", fmt.Sprintf("evt-%d", i))
	}

	processed, err := worker.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if processed != 2 {
		t.Fatalf("expected batch of 2, got %d", processed)
	}

	backlog, err := outbox.Backlog(ctx, events.EventPersisted)
	if err != nil {
		t.Fatalf("backlog: %v", err)
	}
	if backlog != 3 {
		t.Fatalf("expected 3 pending, got %d", backlog)
	}
}
