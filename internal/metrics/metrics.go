// Package metrics holds the Prometheus collectors for entitlement and
// purchase flows.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "learnai"

// Metrics groups the service counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	entitlementDecisions *prometheus.CounterVec
	coursesRecorded      *prometheus.CounterVec
	verifications        *prometheus.CounterVec
	claims               *prometheus.CounterVec
	courseGenerations    *prometheus.CounterVec

	usageTotals        *prometheus.GaugeVec
	subscriptionTotals *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		entitlementDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "entitlement",
			Name:      "decisions_total",
			Help:      "Entitlement decisions by user type and outcome.",
		}, []string{"user_type", "outcome"}),
		coursesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "courses_recorded_total",
			Help:      "Course counter increments by user type.",
		}, []string{"user_type"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "verifications_total",
			Help:      "Store receipt verifications by platform and outcome.",
		}, []string{"platform", "outcome"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "claims_total",
			Help:      "Subscription claim attempts by outcome.",
		}, []string{"outcome"}),
		courseGenerations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "course",
			Name:      "generations_total",
			Help:      "Course generation requests by outcome.",
		}, []string{"outcome"}),
		usageTotals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "usage",
			Name:      "store_totals",
			Help:      "Counter store totals: users, active users, courses.",
		}, []string{"kind"}),
		subscriptionTotals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "subscriptions",
			Help:      "Subscriptions by state.",
		}, []string{"state"}),
	}
	reg.MustRegister(
		m.entitlementDecisions,
		m.coursesRecorded,
		m.verifications,
		m.claims,
		m.courseGenerations,
		m.usageTotals,
		m.subscriptionTotals,
	)
	return m
}

func (m *Metrics) ObserveDecision(userType string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.entitlementDecisions.WithLabelValues(label(userType), outcome).Inc()
}

func (m *Metrics) ObserveCourseRecorded(userType string) {
	if m == nil {
		return
	}
	m.coursesRecorded.WithLabelValues(label(userType)).Inc()
}

// ObserveVerification records outcome "valid" or the failure class.
func (m *Metrics) ObserveVerification(platform, outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(label(platform), label(outcome)).Inc()
}

func (m *Metrics) ObserveClaim(outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(label(outcome)).Inc()
}

func (m *Metrics) ObserveCourseGeneration(outcome string) {
	if m == nil {
		return
	}
	m.courseGenerations.WithLabelValues(label(outcome)).Inc()
}

// SetUsageTotals publishes the counter store summary.
func (m *Metrics) SetUsageTotals(users, active, courses int) {
	if m == nil {
		return
	}
	m.usageTotals.WithLabelValues("users").Set(float64(users))
	m.usageTotals.WithLabelValues("active_users").Set(float64(active))
	m.usageTotals.WithLabelValues("courses").Set(float64(courses))
}

func (m *Metrics) SetSubscriptionTotals(unlinked, active int) {
	if m == nil {
		return
	}
	m.subscriptionTotals.WithLabelValues("unlinked").Set(float64(unlinked))
	m.subscriptionTotals.WithLabelValues("active").Set(float64(active))
}

func label(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}
