package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Award results reported by ObserveAward.
const (
	AwardResultGranted     = "granted"
	AwardResultDuplicate   = "duplicate"
	AwardResultNotEligible = "not_eligible"
	AwardResultFailed      = "failed"
)

// EngagementMetrics counts dispatcher, scheduler and award activity.
type EngagementMetrics struct {
	events    *prometheus.CounterVec
	matched   *prometheus.CounterVec
	scheduled *prometheus.CounterVec
	awards    *prometheus.CounterVec
	canceled  prometheus.Counter
}

// NewEngagementMetrics registers the engagement metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewEngagementMetrics(reg prometheus.Registerer) *EngagementMetrics {
	if reg == nil {
		return &EngagementMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llms_engagement_events_total",
		Help: "Domain events received by the dispatcher.",
	}, []string{"event"})
	matched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llms_engagement_matches_total",
		Help: "Engagement definitions matched by a dispatched event.",
	}, []string{"trigger"})
	scheduled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llms_engagement_scheduled_total",
		Help: "Delayed award invocations handed to the scheduler.",
	}, []string{"award_type"})
	awards := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llms_engagement_awards_total",
		Help: "Award handler outcomes.",
	}, []string{"award_type", "result"})
	canceled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "llms_engagement_canceled_total",
		Help: "Scheduled invocations canceled through group cancellation.",
	})
	reg.MustRegister(events, matched, scheduled, awards, canceled)
	return &EngagementMetrics{
		events:    events,
		matched:   matched,
		scheduled: scheduled,
		awards:    awards,
		canceled:  canceled,
	}
}

func (m *EngagementMetrics) IncEvent(event string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *EngagementMetrics) IncMatched(trigger string) {
	if m == nil || m.matched == nil {
		return
	}
	m.matched.WithLabelValues(normalizeLabel(trigger)).Inc()
}

func (m *EngagementMetrics) IncScheduled(awardType string) {
	if m == nil || m.scheduled == nil {
		return
	}
	m.scheduled.WithLabelValues(normalizeLabel(awardType)).Inc()
}

// ObserveAward records one award handler outcome.
func (m *EngagementMetrics) ObserveAward(awardType, result string) {
	if m == nil || m.awards == nil {
		return
	}
	m.awards.WithLabelValues(normalizeLabel(awardType), normalizeLabel(result)).Inc()
}

func (m *EngagementMetrics) AddCanceled(n int) {
	if m == nil || m.canceled == nil || n <= 0 {
		return
	}
	m.canceled.Add(float64(n))
}
