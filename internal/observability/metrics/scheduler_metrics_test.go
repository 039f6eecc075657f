package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/smallbiznis/rentbill/internal/authorization"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "forbidden", err: fmt.Errorf("sweep: %w", authorization.ErrForbidden), want: SchedulerJobReasonForbidden},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestSchedulerCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSchedulerMetricsForTest(registry)

	m.AddBatchProcessed("mark_overdue", "invoices", 3)
	m.AddBatchProcessed("mark_overdue", "invoices", 0)
	m.IncJobError("apply_late_fees", context.DeadlineExceeded)
	m.IncJobSkipped("mark_overdue")

	if got := testutil.ToFloat64(m.batchProcessed.WithLabelValues("mark_overdue", "invoices")); got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobErrors.WithLabelValues("apply_late_fees", SchedulerJobReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected one error, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobSkipped.WithLabelValues("mark_overdue")); got != 1 {
		t.Fatalf("expected one skip, got %v", got)
	}
}

func TestSchedulerJobDurationHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSchedulerMetricsForTest(registry)

	m.ObserveJobDuration("mark_overdue", 40*time.Millisecond)
	m.ObserveJobDuration("mark_overdue", 3*time.Second)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var hist *dto.Histogram
	for _, family := range families {
		if family.GetName() != "rentbill_scheduler_job_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "job" && label.GetValue() == "mark_overdue" {
					hist = metric.GetHistogram()
				}
			}
		}
	}
	if hist == nil {
		t.Fatal("job duration histogram not registered")
	}
	if got := hist.GetSampleCount(); got != 2 {
		t.Fatalf("expected 2 samples, got %d", got)
	}
	for _, bucket := range hist.GetBucket() {
		if bucket.GetUpperBound() == 0.05 && bucket.GetCumulativeCount() != 1 {
			t.Fatalf("expected one sample under 50ms, got %d", bucket.GetCumulativeCount())
		}
	}
}

func TestNilSchedulerMetricsIsSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("x")
	m.AddBatchProcessed("x", "y", 1)
	m.ObserveRunLoopLag(1)
}
