package otelsdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap/zapcore"
)

const (
	defaultExportTimeout = 5 * time.Second
	defaultMaxQueueSize  = 2048
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP/HTTP collector host:port. Empty disables export;
	// spans are still created so trace ids reach the logs.
	Endpoint      string
	Insecure      bool
	ExportTimeout time.Duration
	MaxQueueSize  int
}

// SDK owns the installed providers.
type SDK struct {
	TracerProvider *sdktrace.TracerProvider
	// LoggerProvider is nil when export is disabled.
	LoggerProvider *sdklog.LoggerProvider

	shutdownFuncs []func(context.Context) error
}

// Setup installs the global tracer provider, the W3C propagator and, when an
// endpoint is configured, the OTLP log provider. Exporter errors are joined and
// returned with a usable SDK so the service can keep running without export.
func Setup(ctx context.Context, cfg Config) (*SDK, error) {
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = defaultExportTimeout
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = defaultMaxQueueSize
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	s := &SDK{}
	var setupErr error

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
	}
	if cfg.Endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			setupErr = errors.Join(setupErr, fmt.Errorf("otlp trace exporter: %w", err))
		} else {
			tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp,
				sdktrace.WithExportTimeout(cfg.ExportTimeout),
				sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			)))
		}
	}
	s.TracerProvider = sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(s.TracerProvider)
	s.shutdownFuncs = append(s.shutdownFuncs, s.TracerProvider.Shutdown)

	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			setupErr = errors.Join(setupErr, fmt.Errorf("otlp log exporter: %w", err))
		} else {
			s.LoggerProvider = sdklog.NewLoggerProvider(
				sdklog.WithProcessor(sdklog.NewBatchProcessor(exp,
					sdklog.WithExportTimeout(cfg.ExportTimeout),
					sdklog.WithMaxQueueSize(cfg.MaxQueueSize),
				)),
				sdklog.WithResource(res),
			)
			global.SetLoggerProvider(s.LoggerProvider)
			s.shutdownFuncs = append(s.shutdownFuncs, s.LoggerProvider.Shutdown)
		}
	}

	return s, setupErr
}

// ZapCore returns a zap core that ships entries through the OTLP log provider,
// or nil when log export is disabled.
func (s *SDK) ZapCore(scope string) zapcore.Core {
	if s == nil || s.LoggerProvider == nil {
		return nil
	}
	return otelzap.NewCore(scope, otelzap.WithLoggerProvider(s.LoggerProvider))
}

// Shutdown flushes and stops every provider, in reverse order of installation.
func (s *SDK) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var err error
	for i := len(s.shutdownFuncs) - 1; i >= 0; i-- {
		err = errors.Join(err, s.shutdownFuncs[i](ctx))
	}
	s.shutdownFuncs = nil
	return err
}
