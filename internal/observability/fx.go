// Package observability bundles tracing and metrics wiring.
package observability

import (
	"github.com/lumenlabs/lumen/internal/config"
	"github.com/lumenlabs/lumen/internal/observability/metrics"
	"github.com/lumenlabs/lumen/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(func(cfg config.Config) metrics.Config {
		return metrics.Config{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
		}
	}),
	fx.Provide(func() metric.MeterProvider {
		return otel.GetMeterProvider()
	}),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(metrics.PipelineWithConfig),
	fx.Invoke(tracing.NewProvider),
)
