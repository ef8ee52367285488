package tier

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/cache"
	"github.com/lumenlabs/lumen/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service answers tier lookups for the quota enforcer.
type Service interface {
	Resolve(ctx context.Context, projectID snowflake.ID) (Entitlement, error)
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

type service struct {
	db    *gorm.DB
	log   *zap.Logger
	clk   clock.Clock
	cache *cache.TTL[snowflake.ID, Entitlement]
}

// NewService builds the tier resolver with a short-lived cache; tier changes
// take effect within the cache TTL.
func NewService(p ServiceParam) Service {
	return &service{
		db:    p.DB,
		log:   p.Log.Named("tier.service"),
		clk:   p.Clock,
		cache: cache.NewTTL[snowflake.ID, Entitlement](30 * time.Second),
	}
}

func (s *service) Resolve(ctx context.Context, projectID snowflake.ID) (Entitlement, error) {
	if cached, ok := s.cache.Get(projectID); ok {
		return cached, nil
	}

	var sub Subscription
	err := s.db.WithContext(ctx).Where("project_id = ?", projectID).First(&sub).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// No subscription row means free tier over the calendar month.
		start, end := calendarMonth(s.clk.Now())
		entitlement := Entitlement{
			Tier:        TierFree,
			Limits:      LimitsFor(TierFree),
			PeriodStart: start,
			PeriodEnd:   end,
		}
		s.cache.Put(projectID, entitlement)
		return entitlement, nil
	case err != nil:
		return Entitlement{}, err
	}

	entitlement := Entitlement{
		Tier:        sub.Tier,
		Limits:      LimitsFor(sub.Tier),
		PeriodStart: sub.CurrentPeriodStart.UTC(),
		PeriodEnd:   sub.CurrentPeriodEnd.UTC(),
	}
	s.cache.Put(projectID, entitlement)
	return entitlement, nil
}

var Module = fx.Module("tier.service",
	fx.Provide(NewService),
)
