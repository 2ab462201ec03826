package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/wolfeidau/victimvoice/client"

// Instrument names exported by the API client.
const (
	RequestsTotalName   = "victimvoice.client.requests.total"
	ErrorsTotalName     = "victimvoice.client.errors.total"
	RetriesTotalName    = "victimvoice.client.retries.total"
	CacheHitsTotalName  = "victimvoice.client.evidence.cache_hits.total"
	RequestDurationName = "victimvoice.client.request.duration"
)

// Metrics holds the API client instruments.
type Metrics struct {
	RequestsTotal   metric.Int64Counter
	ErrorsTotal     metric.Int64Counter
	RetriesTotal    metric.Int64Counter
	CacheHitsTotal  metric.Int64Counter
	RequestDuration metric.Float64Histogram
}

// NewMetrics creates the client instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	var (
		m    Metrics
		err  error
		errs []error
	)

	m.RequestsTotal, err = meter.Int64Counter(RequestsTotalName,
		metric.WithDescription("Total number of API calls"),
		metric.WithUnit("{request}"))
	errs = append(errs, err)

	m.ErrorsTotal, err = meter.Int64Counter(ErrorsTotalName,
		metric.WithDescription("Total number of failed API calls"),
		metric.WithUnit("{error}"))
	errs = append(errs, err)

	m.RetriesTotal, err = meter.Int64Counter(RetriesTotalName,
		metric.WithDescription("GET calls retried after a transport error or 5xx"),
		metric.WithUnit("{retry}"))
	errs = append(errs, err)

	m.CacheHitsTotal, err = meter.Int64Counter(CacheHitsTotalName,
		metric.WithDescription("Evidence downloads served from the HTTP cache"),
		metric.WithUnit("{hit}"))
	errs = append(errs, err)

	m.RequestDuration, err = meter.Float64Histogram(RequestDurationName,
		metric.WithDescription("Duration of API calls"),
		metric.WithUnit("ms"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// NoopMetrics returns instruments that record nothing.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())
	return m
}

// RecordRequest records one API call. status is 0 when the call never got a response.
func (m *Metrics) RecordRequest(ctx context.Context, operation string, status int, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("status", strconv.Itoa(status)),
	)

	m.RequestsTotal.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	if err != nil {
		m.ErrorsTotal.Add(ctx, 1, attrs)
	}
}

// RecordRetry counts one retry of operation.
func (m *Metrics) RecordRetry(ctx context.Context, operation string) {
	m.RetriesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}

// RecordCacheHit counts one evidence download answered by the cache.
func (m *Metrics) RecordCacheHit(ctx context.Context) {
	m.CacheHitsTotal.Add(ctx, 1)
}
