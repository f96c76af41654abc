package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/tigerroll/csvload/pkg/batch/core/config"
	"github.com/tigerroll/csvload/pkg/batch/core/metrics"
	"github.com/tigerroll/csvload/pkg/batch/support/util/logger"
)

// NewMetricRecorder returns the Prometheus recorder, behind an asynchronous
// queue when surfin.infrastructure.metrics.async_buffer_size is positive.
func NewMetricRecorder(lc fx.Lifecycle, cfg *config.Config, prom *PrometheusRecorder) metrics.MetricRecorder {
	bufferSize := cfg.Surfin.Infrastructure.Metrics.AsyncBufferSize
	if bufferSize <= 0 {
		return prom
	}
	async := NewAsyncMetricRecorder(bufferSize, prom)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			async.Close()
			return nil
		},
	})
	return async
}

// NewTracer returns an OpenTelemetry tracer exporting to the configured
// collector, or a no-op tracer when no endpoint is configured.
func NewTracer(lc fx.Lifecycle, cfg *config.Config) (metrics.Tracer, error) {
	tracingCfg := cfg.Surfin.Infrastructure.Tracing
	if tracingCfg.Endpoint == "" {
		return metrics.NewNoOpTracer(), nil
	}
	tp, err := NewTracerProvider(context.Background(), tracingCfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return NewOpenTelemetryTracer(tp), nil
}

// registerMetricsServer serves /metrics for the lifetime of the application.
func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, prom *PrometheusRecorder) {
	metricsCfg := cfg.Surfin.Infrastructure.Metrics
	if !metricsCfg.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	server := &http.Server{Addr: metricsCfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorf("Metrics server stopped: %v", err)
				}
			}()
			logger.Infof("Serving metrics on %s/metrics", ln.Addr())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

// Module provides metrics.MetricRecorder and metrics.Tracer and starts the
// /metrics endpoint when enabled.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
	fx.Invoke(registerMetricsServer),
)
