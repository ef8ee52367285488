package usage

import (
	"github.com/lumenlabs/lumen/internal/usage/repository"
	"github.com/lumenlabs/lumen/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
