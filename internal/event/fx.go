package event

import (
	"github.com/lumenlabs/lumen/internal/event/repository"
	"github.com/lumenlabs/lumen/internal/event/service"
	"go.uber.org/fx"
)

var Module = fx.Module("event.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
