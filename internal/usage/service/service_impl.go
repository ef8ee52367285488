// Package service implements the streaming usage aggregation engine.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/lumenlabs/lumen/internal/event/domain"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/observability/metrics"
	usagedomain "github.com/lumenlabs/lumen/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const backfillBatchSize = 500

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	UsageRepo usagedomain.Repository
	EventRepo eventdomain.Repository
	Outbox    *events.Outbox
	Metrics   *metrics.PipelineMetrics
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	usagerepo usagedomain.Repository
	eventrepo eventdomain.Repository
	outbox    *events.Outbox
	metrics   *metrics.PipelineMetrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("usage.service"),
		usagerepo: p.UsageRepo,
		eventrepo: p.EventRepo,
		outbox:    p.Outbox,
		metrics:   p.Metrics,
	}
}

// Apply is the live incremental mode: one atomic +1 per persisted event.
// db may be a transaction so the increment commits together with the
// outbox claim that triggered it.
func (s *Service) Apply(ctx context.Context, db *gorm.DB, projectID snowflake.ID, day string) error {
	if db == nil {
		db = s.db
	}
	if err := s.usagerepo.Increment(ctx, db, projectID, day, 1); err != nil {
		return err
	}
	s.metrics.IncUsageIncrement("live")
	return nil
}

func (s *Service) DailyUsage(ctx context.Context, projectID snowflake.ID, start, end time.Time) ([]usagedomain.UsageCounter, error) {
	return s.usagerepo.ListDays(ctx, s.db, projectID, start, end)
}

func (s *Service) TotalForPeriod(ctx context.Context, projectID snowflake.ID, start, end time.Time) (uint64, error) {
	return s.usagerepo.TotalForPeriod(ctx, s.db, projectID, start, end)
}

// Backfill replays the persisted event log through the same reducer
// semantics as the live path, folding batches in memory before writing.
// The skip-if-populated guard makes a rerun a no-op.
func (s *Service) Backfill(ctx context.Context) (int64, bool, error) {
	populated, err := s.usagerepo.HasAny(ctx, s.db)
	if err != nil {
		return 0, false, err
	}
	if populated {
		s.log.Info("backfill skipped, counters already populated")
		return 0, true, nil
	}

	var (
		applied int64
		afterID snowflake.ID
	)
	for {
		batch, err := s.eventrepo.ListBatch(ctx, s.db, afterID, backfillBatchSize)
		if err != nil {
			return applied, false, err
		}
		if len(batch) == 0 {
			break
		}

		folded := make(map[snowflake.ID]map[string]uint64)
		signalKeys := make([]string, 0, len(batch))
		for _, event := range batch {
			days, ok := folded[event.ProjectID]
			if !ok {
				days = make(map[string]uint64)
				folded[event.ProjectID] = days
			}
			days[event.Day()]++
			signalKeys = append(signalKeys, event.ID.String())
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for projectID, days := range folded {
				for day, n := range days {
					if err := s.usagerepo.Increment(ctx, tx, projectID, day, n); err != nil {
						return err
					}
				}
			}
			// Retire any still-pending signals for the events just folded.
			// Without this, the live worker would apply them on top of the
			// fold and count the same event twice.
			_, err := s.outbox.MarkPublishedByDedupeKeys(ctx, tx, events.EventPersisted, signalKeys, time.Now().UTC())
			return err
		})
		if err != nil {
			return applied, false, err
		}

		applied += int64(len(batch))
		afterID = batch[len(batch)-1].ID
		for range batch {
			s.metrics.IncUsageIncrement("backfill")
		}
	}

	s.log.Info("backfill complete", zap.Int64("events", applied))
	return applied, false, nil
}
