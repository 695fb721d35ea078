package core

import (
	"context"
	"foodflow/pkg/domain"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes the outcome of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// PrometheusRecorder counts service operations by result and records their latency.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the service collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	rec := &PrometheusRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "foodflow",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by name and result.",
		}, []string{"operation", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "foodflow",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{rec.operations, rec.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Event announces a committed change in a user's workspace.
type Event struct {
	UserID     string                `json:"user_id"`
	Entity     EntityType            `json:"entity"`
	Action     Action                `json:"action"`
	ID         string                `json:"id"`
	Stats      domain.DashboardStats `json:"stats"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// ChangeSink receives events after each committed mutation.
type ChangeSink interface {
	Publish(ctx context.Context, event Event)
}

// ChangeSinkFunc adapts a function to ChangeSink.
type ChangeSinkFunc func(ctx context.Context, event Event)

// Publish calls f.
func (f ChangeSinkFunc) Publish(ctx context.Context, event Event) { f(ctx, event) }

type noopSink struct{}

func (noopSink) Publish(context.Context, Event) {}
