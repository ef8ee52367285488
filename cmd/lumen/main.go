package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/lumenlabs/lumen/internal/clock"
	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/event"
	"github.com/lumenlabs/lumen/internal/events"
	"github.com/lumenlabs/lumen/internal/migration"
	"github.com/lumenlabs/lumen/internal/observability"
	"github.com/lumenlabs/lumen/internal/observability/logger"
	"github.com/lumenlabs/lumen/internal/quota"
	"github.com/lumenlabs/lumen/internal/sampling"
	"github.com/lumenlabs/lumen/internal/seed"
	"github.com/lumenlabs/lumen/internal/server"
	"github.com/lumenlabs/lumen/internal/tier"
	"github.com/lumenlabs/lumen/internal/usage"
	"github.com/lumenlabs/lumen/internal/usage/worker"
	"github.com/lumenlabs/lumen/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
			if err := migration.RunMigrations(conn); err != nil {
				return err
			}
			if !cfg.IsProduction() && cfg.Bootstrap.EnsureDefaultProject {
				return seed.EnsureDefaultProject(conn, log)
			}
			return nil
		}),

		tier.Module,
		sampling.Module,
		events.Module,
		event.Module,
		usage.Module,
		worker.Module,
		quota.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
