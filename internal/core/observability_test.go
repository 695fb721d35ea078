package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "create_parcel", true, 20*time.Millisecond)
	rec.Observe(context.Background(), "create_parcel", true, 30*time.Millisecond)
	rec.Observe(context.Background(), "create_parcel", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_parcel", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("create_parcel", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.latency); n != 1 {
		t.Fatalf("expected one latency series, got %d", n)
	}
	if _, err := NewPrometheusRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestServiceReportsMetricsToPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc := newTestService(t, WithMetricsRecorder(rec))
	mustSignup(t, svc, "amina@farm.test")
	if got := testutil.ToFloat64(rec.operations.WithLabelValues("register_user", "success")); got != 1 {
		t.Fatalf("expected register_user success, got %v", got)
	}
}

func TestChangeSinkFunc(t *testing.T) {
	var got Event
	sink := ChangeSinkFunc(func(_ context.Context, e Event) { got = e })
	svc := newTestService(t, WithChangeSink(sink))
	user := mustSignup(t, svc, "amina@farm.test")
	if got.UserID != user.ID || got.Action != ActionCreate || got.OccurredAt.IsZero() {
		t.Fatalf("unexpected event %+v", got)
	}
}
