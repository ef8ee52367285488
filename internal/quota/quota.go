// Package quota answers "may this project emit more events?" from the
// aggregated usage counters and the project's subscription tier. It is a
// read-only composition: no writes, so it can never double count.
package quota

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/tier"
	usagedomain "github.com/lumenlabs/lumen/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result reports usage against the tier limit for the current period.
type Result struct {
	Allowed bool      `json:"allowed"`
	Used    uint64    `json:"used"`
	Limit   uint64    `json:"limit"`
	Tier    tier.Name `json:"tier"`
}

// Enforcer gates ingestion on the current billing period's usage.
type Enforcer interface {
	Check(ctx context.Context, projectID snowflake.ID) (Result, error)
}

type EnforcerParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	UsageRepo usagedomain.Repository
	Tiers     tier.Service
}

type enforcer struct {
	db        *gorm.DB
	log       *zap.Logger
	usagerepo usagedomain.Repository
	tiers     tier.Service
}

func NewEnforcer(p EnforcerParam) Enforcer {
	return &enforcer{
		db:        p.DB,
		log:       p.Log.Named("quota.enforcer"),
		usagerepo: p.UsageRepo,
		tiers:     p.Tiers,
	}
}

func (e *enforcer) Check(ctx context.Context, projectID snowflake.ID) (Result, error) {
	entitlement, err := e.tiers.Resolve(ctx, projectID)
	if err != nil {
		return Result{}, err
	}

	used, err := e.usagerepo.TotalForPeriod(ctx, e.db, projectID, entitlement.PeriodStart, entitlement.PeriodEnd)
	if err != nil {
		return Result{}, err
	}

	limit := entitlement.Limits.EventsPerMonth
	return Result{
		Allowed: used < limit,
		Used:    used,
		Limit:   limit,
		Tier:    entitlement.Tier,
	}, nil
}

var Module = fx.Module("quota",
	fx.Provide(NewEnforcer),
)
