package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxRow is one pending or applied signal.
type OutboxRow struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	ProjectID   snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_event_outbox_dedupe,priority:1"`
	EventType   string            `gorm:"type:text;not null"`
	Payload     datatypes.JSONMap `gorm:"not null"`
	DedupeKey   *string           `gorm:"type:text;uniqueIndex:ux_event_outbox_dedupe,priority:2"`
	Published   bool              `gorm:"not null;default:false"`
	PublishedAt *time.Time        `gorm:""`
	CreatedAt   time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (OutboxRow) TableName() string { return "event_outbox" }

// Event describes a signal to store in the outbox.
type Event struct {
	ProjectID snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// Outbox inserts signals into the event_outbox table and hands them to the
// aggregation worker.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event inside an existing transaction so the signal
// commits atomically with the durable append it describes.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, event Event) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.ProjectID == 0 {
		return errors.New("invalid_project_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	row := OutboxRow{
		ID:        o.genID.Generate(),
		ProjectID: event.ProjectID,
		EventType: name,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if dedupe := strings.TrimSpace(event.DedupeKey); dedupe != "" {
		row.DedupeKey = &dedupe
	}

	// Duplicate dedupe keys are silently dropped so a retried ingestion
	// never produces a second signal.
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

// FetchUnpublished returns the oldest pending signals of the given type.
func (o *Outbox) FetchUnpublished(ctx context.Context, db *gorm.DB, eventType string, limit int) ([]OutboxRow, error) {
	if db == nil {
		db = o.db
	}
	var rows []OutboxRow
	err := db.WithContext(ctx).
		Where("published = ? AND event_type = ?", false, eventType).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// MarkPublished flips one row to published. The published = false guard
// makes the claim atomic: exactly one consumer wins a contended row.
func (o *Outbox) MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	if db == nil {
		db = o.db
	}
	result := db.WithContext(ctx).
		Model(&OutboxRow{}).
		Where("id = ? AND published = ?", id, false).
		Updates(map[string]any{
			"published":    true,
			"published_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkPublishedByDedupeKeys claims every pending signal whose dedupe key is
// in the given set. The backfill fold uses this to retire signals for events
// it has already counted, so the live worker never applies them a second
// time.
func (o *Outbox) MarkPublishedByDedupeKeys(ctx context.Context, db *gorm.DB, eventType string, keys []string, now time.Time) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	if db == nil {
		db = o.db
	}
	result := db.WithContext(ctx).
		Model(&OutboxRow{}).
		Where("published = ? AND event_type = ? AND dedupe_key IN ?", false, eventType, keys).
		Updates(map[string]any{
			"published":    true,
			"published_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Backlog counts pending signals, exported as a gauge.
func (o *Outbox) Backlog(ctx context.Context, eventType string) (int64, error) {
	var count int64
	err := o.db.WithContext(ctx).
		Model(&OutboxRow{}).
		Where("published = ? AND event_type = ?", false, eventType).
		Count(&count).Error
	return count, err
}
