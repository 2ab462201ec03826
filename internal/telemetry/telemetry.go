// Package telemetry wires OpenTelemetry export for vvcli and owns the API
// client's metric instruments.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Options describe the process reporting telemetry.
type Options struct {
	ServiceName string
	Version     string
	// Reader replaces the OTLP metric exporter, mainly for tests.
	Reader sdkmetric.Reader
}

// Telemetry is the running export pipeline for one CLI invocation.
type Telemetry struct {
	// Metrics are bound to this pipeline's meter provider.
	Metrics  *Metrics
	enabled  bool
	shutdown []func(context.Context) error
}

// Enabled reports whether an OTLP endpoint has been configured.
func Enabled() bool {
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// Setup starts trace and metric export. Exporters read the standard
// OTEL_EXPORTER_OTLP_* variables. Without an endpoint or a Reader nothing is
// exported and the client instruments are no-ops.
func Setup(ctx context.Context, opts Options) (*Telemetry, error) {
	if !Enabled() && opts.Reader == nil {
		log.Debug().Msg("telemetry disabled, no OTLP endpoint configured")
		return &Telemetry{Metrics: NoopMetrics()}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.Version),
		),
		resource.WithFromEnv(),
		resource.WithOSType(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	t := &Telemetry{enabled: true}

	if Enabled() {
		if tp, err := newTracerProvider(ctx, res); err != nil {
			log.Warn().Err(err).Msg("failed to initialize trace provider, continuing without tracing")
		} else {
			otel.SetTracerProvider(tp)
			t.shutdown = append(t.shutdown, tp.Shutdown)
		}
	}

	mp, err := newMeterProvider(ctx, res, opts.Reader)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize meter provider, continuing without metrics")
		t.Metrics = NoopMetrics()
	} else {
		otel.SetMeterProvider(mp)
		t.shutdown = append(t.shutdown, mp.Shutdown)

		if t.Metrics, err = NewMetrics(mp); err != nil {
			log.Warn().Err(err).Msg("failed to create client instruments")
			t.Metrics = NoopMetrics()
		}
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Debug().
		Str("service", opts.ServiceName).
		Str("version", opts.Version).
		Msg("telemetry initialized")

	return t, nil
}

// Enabled reports whether this pipeline exports anything.
func (t *Telemetry) Enabled() bool {
	return t.enabled
}

// Shutdown flushes pending spans and metrics. Short commands rely on it for
// their only export.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range t.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdown = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

func newTracerProvider(ctx context.Context, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Sampling follows OTEL_TRACES_SAMPLER when set.
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, res *resource.Resource, reader sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	if reader == nil {
		exporter, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	), nil
}
