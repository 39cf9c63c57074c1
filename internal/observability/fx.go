package observability

import (
	"github.com/smallbiznis/metalid/internal/observability/logger"
	"github.com/smallbiznis/metalid/internal/observability/metrics"
	"github.com/smallbiznis/metalid/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(LoadConfig),
	fx.Provide(
		func(cfg Config) logger.Config {
			return logger.Config{
				Service:     cfg.ServiceName,
				Environment: cfg.Environment,
				Version:     cfg.Version,
				Instance:    cfg.InstanceID,
				Level:       cfg.LogLevel,
				Format:      cfg.LogFormat,
				Development: cfg.Debug(),
			}
		},
		func(cfg Config) tracing.Config {
			return tracing.Config{
				Enabled:          cfg.Export,
				ServiceName:      cfg.ServiceName,
				ServiceVersion:   cfg.Version,
				Environment:      cfg.Environment,
				ExporterEndpoint: cfg.Endpoint,
				ExporterProtocol: cfg.Protocol,
				SamplingRatio:    cfg.SampleRatio,
			}
		},
		func(cfg Config) metrics.Config {
			return metrics.Config{
				Enabled:          cfg.Export,
				ExporterEndpoint: cfg.Endpoint,
				ExporterProtocol: cfg.Protocol,
				ServiceName:      cfg.ServiceName,
				Environment:      cfg.Environment,
			}
		},
	),
	fx.Provide(
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// the tracer provider has no consumers but must be built to register globally
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
