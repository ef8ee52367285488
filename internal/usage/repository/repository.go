// Package repository implements the usage counter store on gorm.
package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

// Provide returns the gorm-backed counter repository.
func Provide() domain.Repository {
	return repo{}
}

func (repo) Increment(ctx context.Context, db *gorm.DB, projectID snowflake.ID, day string, n uint64) error {
	if n == 0 {
		return nil
	}
	now := time.Now().UTC()
	// The increment happens inside the database so concurrent ingestion
	// never loses updates; this is the atomicity the billing counts
	// depend on.
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_counters (project_id, day, count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (project_id, day)
		 DO UPDATE SET count = usage_counters.count + ?, updated_at = ?`,
		projectID,
		day,
		n,
		now,
		now,
		n,
		now,
	).Error
}

func (repo) TotalForPeriod(ctx context.Context, db *gorm.DB, projectID snowflake.ID, start, end time.Time) (uint64, error) {
	var total *uint64
	err := db.WithContext(ctx).
		Model(&domain.UsageCounter{}).
		Select("SUM(count)").
		Where("project_id = ? AND day >= ? AND day < ?", projectID, domain.DayOf(start), domain.DayOf(end)).
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}

func (repo) ListDays(ctx context.Context, db *gorm.DB, projectID snowflake.ID, start, end time.Time) ([]domain.UsageCounter, error) {
	var counters []domain.UsageCounter
	err := db.WithContext(ctx).
		Where("project_id = ? AND day >= ? AND day < ?", projectID, domain.DayOf(start), domain.DayOf(end)).
		Order("day ASC").
		Find(&counters).Error
	return counters, err
}

func (repo) HasAny(ctx context.Context, db *gorm.DB) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.UsageCounter{}).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
