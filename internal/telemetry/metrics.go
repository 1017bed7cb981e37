package telemetry

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"

	"github.com/podcastgen/api/internal/model"
)

const meterName = "github.com/podcastgen/api"

// Metrics records pipeline outcomes
type Metrics struct {
	jobs      metric.Int64Counter
	clips     metric.Int64Counter
	jingles   metric.Int64Counter
	mastering metric.Float64Histogram
}

// Setup installs a meter provider backed by a Prometheus registry and returns
// the metrics, the scrape handler and a shutdown function.
func Setup(serviceName, env string) (*Metrics, http.Handler, func(context.Context) error, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			attribute.String("deployment.environment", env),
		),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	m, err := newMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, nil, nil, err
	}

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m, handler, provider.Shutdown, nil
}

// Noop returns metrics that record nothing
func Noop() *Metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	jobs, err := meter.Int64Counter("podcast_jobs_total",
		metric.WithDescription("Podcast jobs by terminal status"))
	if err != nil {
		return nil, err
	}
	clips, err := meter.Int64Counter("podcast_clips_total",
		metric.WithDescription("Voice clips by outcome"))
	if err != nil {
		return nil, err
	}
	jingles, err := meter.Int64Counter("podcast_jingles_total",
		metric.WithDescription("Jingles by final state"))
	if err != nil {
		return nil, err
	}
	mastering, err := meter.Float64Histogram("podcast_mastering_seconds",
		metric.WithDescription("Time spent assembling and writing master tracks"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		jobs:      jobs,
		clips:     clips,
		jingles:   jingles,
		mastering: mastering,
	}, nil
}

// JobFinished counts a job that reached a terminal status
func (m *Metrics) JobFinished(ctx context.Context, status model.JobStatus, phase model.Phase) {
	if m == nil {
		return
	}
	m.jobs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.String("phase", string(phase)),
	))
}

// ClipsRendered counts clip outcomes for one job
func (m *Metrics) ClipsRendered(ctx context.Context, ok, failed int) {
	if m == nil {
		return
	}
	m.clips.Add(ctx, int64(ok), metric.WithAttributes(attribute.String("outcome", "ok")))
	m.clips.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("outcome", "failed")))
}

// JingleResolved counts the final state of a jingle
func (m *Metrics) JingleResolved(ctx context.Context, state model.JingleState) {
	if m == nil {
		return
	}
	m.jingles.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(state))))
}

// MasteringTook records the duration of one mastering run
func (m *Metrics) MasteringTook(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.mastering.Record(ctx, d.Seconds())
}
