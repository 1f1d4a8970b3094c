package github_handler

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names identifying the API family a call belongs to.
const (
	MetricRESTRequest    = "github.rest"
	MetricGraphQLRequest = "github.graphql"
	MetricAppRequest     = "github.app"
)

// Outcome values reported with every request metric.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// RequestMetric describes one finished call.
type RequestMetric struct {
	Name   string
	Method string
	// Path is the unexpanded template, which keeps cardinality low.
	Path    string
	Status  int
	Outcome string
	Latency time.Duration
}

// MetricsRecorder receives one RequestMetric per call. Implementations must
// not block; a panic inside RecordRequest is recovered and logged.
type MetricsRecorder interface {
	RecordRequest(ctx context.Context, m RequestMetric)
}

// NopMetricsRecorder drops every metric.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) RecordRequest(context.Context, RequestMetric) {}

// OtelMetricsRecorder records request latency and counts with OpenTelemetry.
type OtelMetricsRecorder struct {
	duration metric.Float64Histogram
	count    metric.Int64Counter
}

var _ MetricsRecorder = (*OtelMetricsRecorder)(nil)

// NewOtelMetricsRecorder creates the github.request.duration histogram and the
// github.request.count counter on meter.
func NewOtelMetricsRecorder(meter metric.Meter) (*OtelMetricsRecorder, error) {
	duration, err := meter.Float64Histogram(
		"github.request.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency of outbound GitHub API calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	count, err := meter.Int64Counter(
		"github.request.count",
		metric.WithDescription("Outbound GitHub API calls by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	return &OtelMetricsRecorder{duration: duration, count: count}, nil
}

// RecordRequest implements MetricsRecorder.
func (r *OtelMetricsRecorder) RecordRequest(ctx context.Context, m RequestMetric) {
	attrs := metric.WithAttributes(
		attribute.String("name", m.Name),
		attribute.String("method", m.Method),
		attribute.String("path", m.Path),
		attribute.Int("status", m.Status),
		attribute.String("outcome", m.Outcome),
	)
	r.duration.Record(ctx, float64(m.Latency)/float64(time.Millisecond), attrs)
	r.count.Add(ctx, 1, attrs)
}
