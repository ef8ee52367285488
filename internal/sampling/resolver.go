package sampling

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/cache"
	"github.com/lumenlabs/lumen/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver returns the sampling policy for a project. Lookups are cached
// briefly so config edits hot-reload between requests without any locking
// on the ingest path.
type Resolver interface {
	Resolve(ctx context.Context, projectID snowflake.ID) Config
}

type ResolverParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	Cfg config.Config
}

type resolver struct {
	db       *gorm.DB
	log      *zap.Logger
	fallback Config
	cache    *cache.TTL[snowflake.ID, Config]
}

// NewResolver builds the per-project policy resolver. The deployment-wide
// policy from env config applies to projects without an override row.
func NewResolver(p ResolverParam) Resolver {
	return &resolver{
		db:  p.DB,
		log: p.Log.Named("sampling.resolver"),
		fallback: Config{
			DefaultRate:            p.Cfg.Sampling.DefaultRate,
			AlwaysKeepErrors:       p.Cfg.Sampling.AlwaysKeepErrors,
			SlowRequestThresholdMs: p.Cfg.Sampling.SlowRequestThresholdMs,
		}.Normalize(),
		cache: cache.NewTTL[snowflake.ID, Config](15 * time.Second),
	}
}

func (r *resolver) Resolve(ctx context.Context, projectID snowflake.ID) Config {
	if cached, ok := r.cache.Get(projectID); ok {
		return cached
	}

	var row ProjectConfig
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		r.cache.Put(projectID, r.fallback)
		return r.fallback
	case err != nil:
		// Policy lookup failures must not fail ingestion; fall back and
		// let the next request retry the read.
		r.log.Warn("sampling config lookup failed", zap.Error(err))
		return r.fallback
	}

	cfg := Config{
		DefaultRate:            row.DefaultRate,
		AlwaysKeepErrors:       row.AlwaysKeepErrors,
		SlowRequestThresholdMs: row.SlowRequestThresholdMs,
	}.Normalize()
	r.cache.Put(projectID, cfg)
	return cfg
}

var Module = fx.Module("sampling",
	fx.Provide(NewResolver),
)
