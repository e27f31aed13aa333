package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngagementMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngagementMetrics(reg)

	m.IncEvent("course.completed")
	m.IncMatched("course_completed")
	m.IncMatched("course_completed")
	m.IncScheduled("email")
	m.ObserveAward("certificate", AwardResultDuplicate)
	m.AddCanceled(3)
	m.AddCanceled(0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "llms_engagement_matches_total", "trigger", "course_completed"); err != nil || got != 2 {
		t.Fatalf("expected 2 matches, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "llms_engagement_awards_total", "result", AwardResultDuplicate); err != nil || got != 1 {
		t.Fatalf("expected 1 duplicate award, got %f err=%v", got, err)
	}
	canceled := findMetricFamily(mfs, "llms_engagement_canceled_total")
	if canceled == nil || canceled.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected canceled counter of 3")
	}
}

func TestEngagementMetricsNilSafe(t *testing.T) {
	var m *EngagementMetrics
	m.IncEvent("x")
	m.ObserveAward("email", AwardResultGranted)

	noop := NewEngagementMetrics(nil)
	noop.IncScheduled("email")
	noop.AddCanceled(2)
}
