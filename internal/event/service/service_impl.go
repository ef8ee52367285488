// Package service implements the canonicalizer / ingestion gateway.
package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/clock"
	"github.com/lumenlabs/lumen/internal/event/domain"
	"github.com/lumenlabs/lumen/internal/event/tracekey"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/observability/logger"
	"github.com/lumenlabs/lumen/internal/observability/metrics"
	"github.com/lumenlabs/lumen/internal/observability/reqcontext"
	"github.com/lumenlabs/lumen/internal/quota"
	"github.com/lumenlabs/lumen/internal/sampling"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	outcomeSuccess = domain.OutcomeSuccess
	outcomeError   = domain.OutcomeError
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Outbox   *events.Outbox
	Sampling sampling.Resolver
	Quota    quota.Enforcer
	Metrics  *metrics.PipelineMetrics
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clk      clock.Clock
	repo     domain.Repository
	outbox   *events.Outbox
	sampling sampling.Resolver
	quota    quota.Enforcer
	metrics  *metrics.PipelineMetrics

	// draw produces a uniform value in [0,1) for the sampling decision;
	// tests replace it with a deterministic source.
	draw func() float64
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("event.service"),
		genID:    p.GenID,
		clk:      p.Clock,
		repo:     p.Repo,
		outbox:   p.Outbox,
		sampling: p.Sampling,
		quota:    p.Quota,
		metrics:  p.Metrics,
		draw:     rand.Float64,
	}
}

func (s *Service) Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestResult, error) {
	projectID, err := s.projectFromContext(ctx)
	if err != nil {
		return domain.IngestResult{}, err
	}

	eventType := strings.TrimSpace(req.EventType)
	if eventType == "" {
		return domain.IngestResult{}, domain.ErrInvalidEventType
	}

	// Advisory check at the edge: enforcement reads derived state, so a
	// brief overshoot is acceptable and lookup failures fail open.
	if check, err := s.quota.Check(ctx, projectID); err != nil {
		s.log.Warn("quota check failed, admitting event",
			zap.String("project_id", projectID.String()), zap.Error(err))
	} else if !check.Allowed {
		s.metrics.IncIngested("rejected")
		return domain.IngestResult{}, domain.ErrQuotaExceeded
	}

	event := s.buildEvent(projectID, eventType, req)

	cfg := s.sampling.Resolve(ctx, projectID)
	outcome := ""
	if event.Outcome != nil {
		outcome = *event.Outcome
	}
	keep, reason := sampling.Decide(outcome, extractElapsedMs(req.Properties), cfg, s.draw())
	if !keep {
		// Dropped events never reach storage or the usage counters.
		s.metrics.IncIngested("sampled_out")
		return domain.IngestResult{Persisted: false}, nil
	}

	result, err := s.append(ctx, event)
	if err != nil {
		s.metrics.IncIngested("rejected")
		return domain.IngestResult{}, fmt.Errorf("%w: %v", domain.ErrStorageFailure, err)
	}

	s.metrics.IncIngested("persisted")
	s.log.Debug("event persisted",
		zap.String("event_id", result.EventID.String()),
		zap.String("trace_id", event.TraceID),
		zap.String("keep_reason", reason),
		zap.Any("properties", logger.MaskProperties(req.Properties)),
	)
	return result, nil
}

func (s *Service) ListByTrace(ctx context.Context, traceID string) ([]domain.WideEvent, error) {
	projectID, err := s.projectFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := tracekey.Normalize(traceID)
	if !ok {
		return nil, domain.ErrInvalidTraceID
	}
	return s.repo.ListByTrace(ctx, s.db, projectID, id)
}

// buildEvent canonicalizes the raw submission: fresh id, server receipt
// time, caller-wins trace id, reserved-namespace property merge, and
// one-time alias extraction of the indexed fields.
func (s *Service) buildEvent(projectID snowflake.ID, eventType string, req domain.IngestRequest) *domain.WideEvent {
	now := s.clk.Now()

	timestamp := now
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = req.Timestamp.UTC()
	}

	traceID, ok := tracekey.Normalize(req.TraceID)
	if !ok {
		traceID = tracekey.Begin()
	}

	props := make(datatypes.JSONMap, len(req.Properties))
	for key, value := range req.Properties {
		if key == domain.ReservedNamespace {
			// The namespace belongs to the system; a colliding user
			// property is discarded rather than trusted.
			continue
		}
		props[key] = value
	}

	return &domain.WideEvent{
		ID:             s.genID.Generate(),
		ProjectID:      projectID,
		EventType:      eventType,
		TraceID:        traceID,
		Timestamp:      timestamp,
		IngestedAt:     now,
		StatusCode:     extractStatusCode(req.Properties),
		Outcome:        extractOutcome(req.Properties),
		IdempotencyKey: normalizeIdempotencyKey(req.IdempotencyKey),
		Properties:     props,
	}
}

// append writes the event and its aggregation signal in one transaction.
// A retried ingestion lands on the idempotency-key conflict path and
// returns the original event without a second signal.
func (s *Service) append(ctx context.Context, event *domain.WideEvent) (domain.IngestResult, error) {
	result := domain.IngestResult{Persisted: true, EventID: event.ID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.Insert(ctx, tx, event)
		if err != nil {
			return err
		}
		if !inserted {
			if event.IdempotencyKey == nil {
				return fmt.Errorf("insert conflict without idempotency key")
			}
			existing, err := s.repo.FindByIdempotencyKey(ctx, tx, event.ProjectID, *event.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("insert conflict for key %q but no stored event", *event.IdempotencyKey)
			}
			result.EventID = existing.ID
			return nil
		}

		payload := events.PersistedPayload{
			EventID:    event.ID.String(),
			ProjectID:  event.ProjectID.String(),
			Day:        event.Day(),
			IngestedAt: event.IngestedAt.UTC().Format(time.RFC3339Nano),
		}
		return s.outbox.PublishTx(ctx, tx, events.Event{
			ProjectID: event.ProjectID,
			Type:      events.EventPersisted,
			Payload:   payload.ToMap(),
			DedupeKey: event.ID.String(),
		})
	})
	if err != nil {
		return domain.IngestResult{}, err
	}
	return result, nil
}

func (s *Service) projectFromContext(ctx context.Context) (snowflake.ID, error) {
	raw, ok := reqcontext.ProjectIDFromContext(ctx)
	if !ok || raw == 0 {
		return 0, domain.ErrUnauthorized
	}
	return snowflake.ID(raw), nil
}

func normalizeIdempotencyKey(key *string) *string {
	if key == nil {
		return nil
	}
	value := strings.TrimSpace(*key)
	if value == "" {
		return nil
	}
	return &value
}
