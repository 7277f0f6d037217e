package aeronet

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aerosolkit/aeronet/pkg/aeronet"

// instruments records client metrics. It is safe to use with the global
// no-op meter when telemetry is disabled.
type instruments struct {
	requestDuration metric.Float64Histogram
	requestTotal    metric.Int64Counter
	cacheHit        metric.Int64Counter
	cacheMiss       metric.Int64Counter
	responseSize    metric.Int64Histogram
}

func newInstruments() (*instruments, error) {
	meter := otel.Meter(instrumentationName)

	requestDuration, err := meter.Float64Histogram(
		"aeronet.request.duration",
		metric.WithDescription("Duration of AERONET web service requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestTotal, err := meter.Int64Counter(
		"aeronet.request.total",
		metric.WithDescription("Total number of AERONET web service requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"aeronet.cache.hit",
		metric.WithDescription("Tables read from an existing cache file"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"aeronet.cache.miss",
		metric.WithDescription("Cache paths that had to be fetched"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	responseSize, err := meter.Int64Histogram(
		"aeronet.response.size",
		metric.WithDescription("Size of AERONET response bodies in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	return &instruments{
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHit:        cacheHit,
		cacheMiss:       cacheMiss,
		responseSize:    responseSize,
	}, nil
}

func (m *instruments) recordRequest(ctx context.Context, duration time.Duration, status int, size int, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("http.response.status_code", status),
	}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}

	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.requestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err == nil {
		m.responseSize.Record(ctx, int64(size))
	}
}

func (m *instruments) recordCache(ctx context.Context, hit bool) {
	if hit {
		m.cacheHit.Add(ctx, 1)
		return
	}
	m.cacheMiss.Add(ctx, 1)
}
