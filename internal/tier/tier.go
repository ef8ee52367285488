// Package tier resolves a project's subscription tier and billing period.
// Quota enforcement reads limits from here; usage counters are never reset
// by tier transitions.
package tier

import (
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Name identifies a subscription tier.
type Name string

const (
	TierFree    Name = "free"
	TierStarter Name = "starter"
	TierPro     Name = "pro"
)

// Limits are the entitlements attached to a tier.
type Limits struct {
	EventsPerMonth uint64 `json:"events_per_month"`
	MaxProjects    int    `json:"max_projects"`
	RetentionDays  int    `json:"retention_days"`
}

var catalog = map[Name]Limits{
	TierFree:    {EventsPerMonth: 10_000, MaxProjects: 1, RetentionDays: 7},
	TierStarter: {EventsPerMonth: 100_000, MaxProjects: 3, RetentionDays: 30},
	TierPro:     {EventsPerMonth: 1_000_000, MaxProjects: math.MaxInt32, RetentionDays: 90},
}

// LimitsFor returns the entitlements for a tier. Unknown tier names fall
// back to free, matching the downgrade/cancel behavior.
func LimitsFor(name Name) Limits {
	if limits, ok := catalog[name]; ok {
		return limits
	}
	return catalog[TierFree]
}

// Subscription records a project's tier and current billing period.
type Subscription struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	ProjectID          snowflake.ID `gorm:"not null;uniqueIndex"`
	Tier               Name         `gorm:"type:text;not null;default:'free'"`
	CurrentPeriodStart time.Time    `gorm:"not null"`
	CurrentPeriodEnd   time.Time    `gorm:"not null"`
	CreatedAt          time.Time    `gorm:"not null"`
	UpdatedAt          time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Entitlement is a resolved tier: limits plus the active billing period.
type Entitlement struct {
	Tier        Name      `json:"tier"`
	Limits      Limits    `json:"limits"`
	PeriodStart time.Time `json:"current_period_start"`
	PeriodEnd   time.Time `json:"current_period_end"`
}

// calendarMonth returns the UTC month containing now, used for projects
// without a subscription row.
func calendarMonth(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
