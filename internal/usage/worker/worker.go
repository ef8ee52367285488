// Package worker drains the outbox into the usage counters: the live
// incremental mode of the aggregation engine.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/observability/metrics"
	usagedomain "github.com/lumenlabs/lumen/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Outbox     *events.Outbox
	Aggregator usagedomain.Service
	Metrics    *metrics.PipelineMetrics
	Config     Config `optional:"true"`
}

type Worker struct {
	db         *gorm.DB
	log        *zap.Logger
	outbox     *events.Outbox
	aggregator usagedomain.Service
	metrics    *metrics.PipelineMetrics
	cfg        Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:         p.DB,
		log:        p.Log.Named("usage.worker"),
		outbox:     p.Outbox,
		aggregator: p.Aggregator,
		metrics:    p.Metrics,
		cfg:        p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("usage aggregation run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of persisted-event signals and applies them to
// the counters. The claim and the increment commit in one transaction, so
// each signal is applied exactly once.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w.db == nil || w.outbox == nil || w.aggregator == nil {
		return 0, errors.New("usage_worker_unavailable")
	}

	processed := 0
	now := time.Now().UTC()
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := w.outbox.FetchUnpublished(ctx, tx, events.EventPersisted, w.cfg.BatchSize)
		if err != nil {
			return err
		}
		for _, row := range rows {
			claimed, err := w.outbox.MarkPublished(ctx, tx, row.ID, now)
			if err != nil {
				return err
			}
			if !claimed {
				continue
			}

			projectID, day, ok := decodePayload(row)
			if !ok {
				// A malformed signal stays claimed; leaving it pending
				// would wedge the queue behind it.
				w.log.Warn("dropping malformed outbox payload", zap.Int64("outbox_id", int64(row.ID)))
				continue
			}

			if err := w.aggregator.Apply(ctx, tx, projectID, day); err != nil {
				return err
			}
			w.metrics.ObserveAggregationLag(now.Sub(row.CreatedAt))
			processed++
		}
		return nil
	})
	if err != nil {
		return processed, err
	}

	if backlog, err := w.outbox.Backlog(ctx, events.EventPersisted); err == nil {
		w.metrics.SetOutboxBacklog(backlog)
	}
	return processed, nil
}

func decodePayload(row events.OutboxRow) (snowflake.ID, string, bool) {
	rawProject, _ := row.Payload["project_id"].(string)
	day, _ := row.Payload["day"].(string)

	projectID, err := snowflake.ParseString(strings.TrimSpace(rawProject))
	if err != nil || projectID == 0 || strings.TrimSpace(day) == "" {
		return 0, "", false
	}
	return projectID, day, true
}
