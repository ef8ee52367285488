// Package sampling decides, once per event and after its outcome is known,
// whether the event is retained. The decision is tail-based: errors and slow
// operations are always kept so sampling never hides what operators most
// need to see.
package sampling

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Outcome values recognized by the keep rules.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Decision reasons, recorded for debugging and metrics.
const (
	ReasonError   = "error"
	ReasonSlow    = "slow"
	ReasonSampled = "sampled"
	ReasonRate    = "rate"
)

// Config is the per-project sampling policy. It is resolved once per
// request and never mutated in place; hot reloads swap whole values.
type Config struct {
	DefaultRate            float64
	AlwaysKeepErrors       bool
	SlowRequestThresholdMs int64
}

// Normalize clamps the policy into its valid domain.
func (c Config) Normalize() Config {
	if c.DefaultRate < 0 {
		c.DefaultRate = 0
	}
	if c.DefaultRate > 1 {
		c.DefaultRate = 1
	}
	if c.SlowRequestThresholdMs < 0 {
		c.SlowRequestThresholdMs = 0
	}
	return c
}

// Decide applies the keep rules in order: errors (when AlwaysKeepErrors),
// then slow requests, then a uniform draw against DefaultRate. draw must be
// uniform in [0,1); passing it in keeps the function pure.
func Decide(outcome string, elapsedMs int64, cfg Config, draw float64) (bool, string) {
	cfg = cfg.Normalize()

	if cfg.AlwaysKeepErrors && outcome == OutcomeError {
		return true, ReasonError
	}
	if elapsedMs >= cfg.SlowRequestThresholdMs {
		return true, ReasonSlow
	}
	if draw < cfg.DefaultRate {
		return true, ReasonSampled
	}
	return false, ReasonRate
}

// ProjectConfig is the stored per-project override of the deployment
// default policy.
type ProjectConfig struct {
	ProjectID              snowflake.ID `gorm:"primaryKey"`
	DefaultRate            float64      `gorm:"not null;default:1.0"`
	AlwaysKeepErrors       bool         `gorm:"not null;default:true"`
	SlowRequestThresholdMs int64        `gorm:"not null;default:1000"`
	UpdatedAt              time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (ProjectConfig) TableName() string { return "sampling_configs" }
