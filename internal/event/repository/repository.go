// Package repository implements the append-only wide-event store on gorm.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/event/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

// Provide returns the gorm-backed event repository.
func Provide() domain.Repository {
	return repo{}
}

func (repo) Insert(ctx context.Context, db *gorm.DB, event *domain.WideEvent) (bool, error) {
	if event == nil {
		return false, errors.New("missing_event")
	}
	// ON CONFLICT DO NOTHING over the (project_id, idempotency_key) unique
	// index makes retried ingestion a no-op instead of a duplicate row.
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, projectID snowflake.ID, key string) (*domain.WideEvent, error) {
	var event domain.WideEvent
	err := db.WithContext(ctx).
		Where("project_id = ? AND idempotency_key = ?", projectID, key).
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (repo) ListByTrace(ctx context.Context, db *gorm.DB, projectID snowflake.ID, traceID string) ([]domain.WideEvent, error) {
	var events []domain.WideEvent
	err := db.WithContext(ctx).
		Where("project_id = ? AND trace_id = ?", projectID, traceID).
		Order("timestamp ASC, ingested_at ASC").
		Find(&events).Error
	return events, err
}

func (repo) ListBatch(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]domain.WideEvent, error) {
	var events []domain.WideEvent
	err := db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
