package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"mentionguard/core"
	"mentionguard/models"
)

// Check outcomes
const (
	OutcomeOK                  = "ok"
	OutcomeInProgress          = "in_progress"
	OutcomeSnapshotUnavailable = "snapshot_unavailable"
	OutcomeError               = "error"
)

// Fix outcomes
const (
	FixOutcomeSuccess = "success"
	FixOutcomeFailed  = "failed"
	FixOutcomeManual  = "manual"
)

// Metrics holds the Prometheus collectors of the mention engine.
// All metrics are prefixed with "mentionguard_".
//
//   - mentionguard_checks_total{trigger,outcome}
//   - mentionguard_check_duration_seconds{trigger}
//   - mentionguard_issues_detected_total{type}
//   - mentionguard_fixes_total{kind,outcome}
//   - mentionguard_fix_sessions_total{state}
//   - mentionguard_monitored_guilds
type Metrics struct {
	registerer prometheus.Registerer

	ChecksTotal         *prometheus.CounterVec
	CheckDuration       *prometheus.HistogramVec
	IssuesDetectedTotal *prometheus.CounterVec
	FixesTotal          *prometheus.CounterVec
	FixSessionsTotal    *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. Pass prometheus.DefaultRegisterer in production
// and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registerer: reg,
		ChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_checks_total",
				Help: "Detection cycles by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		CheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mentionguard_check_duration_seconds",
				Help:    "Duration of detection cycles including auto-fix",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"trigger"},
		),
		IssuesDetectedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_issues_detected_total",
				Help: "Findings reported by detection cycles, by issue type",
			},
			[]string{"type"},
		),
		FixesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_fixes_total",
				Help: "Executed fix actions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		FixSessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mentionguard_fix_sessions_total",
				Help: "Fix sessions by terminal state",
			},
			[]string{"state"},
		),
	}
}

// TrackMonitoredGuilds exposes the number of scheduled guilds, read at scrape time
func (m *Metrics) TrackMonitoredGuilds(count func() int) {
	promauto.With(m.registerer).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mentionguard_monitored_guilds",
			Help: "Guilds with an active monitoring schedule",
		},
		func() float64 { return float64(count()) },
	)
}

func (m *Metrics) ObserveCheck(trigger models.AuditTrigger, err error, elapsed time.Duration) {
	m.ChecksTotal.WithLabelValues(string(trigger), checkOutcome(err)).Inc()
	if err == nil {
		m.CheckDuration.WithLabelValues(string(trigger)).Observe(elapsed.Seconds())
	}
}

func (m *Metrics) ObserveIssues(issues []models.Issue) {
	for _, issue := range issues {
		m.IssuesDetectedTotal.WithLabelValues(string(issue.Type)).Add(float64(max(1, len(issue.Targets))))
	}
}

func (m *Metrics) ObserveBatch(batch models.BatchResult) {
	for _, result := range batch.Results {
		outcome := FixOutcomeSuccess
		switch {
		case result.ManualRequired:
			outcome = FixOutcomeManual
		case !result.Success:
			outcome = FixOutcomeFailed
		}
		m.FixesTotal.WithLabelValues(string(result.Kind), outcome).Inc()
	}
}

func (m *Metrics) ObserveFixSession(op models.GateOperation) {
	m.FixSessionsTotal.WithLabelValues(string(op.State)).Inc()
}

func checkOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, core.ErrCheckInProgress):
		return OutcomeInProgress
	case errors.Is(err, core.ErrSnapshotUnavailable):
		return OutcomeSnapshotUnavailable
	default:
		return OutcomeError
	}
}
