package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stemsi/exstem-portal/internal/model"
	"github.com/stemsi/exstem-portal/internal/session"
)

// Collectors holds the portal's session metrics. It is a session.Observer
// shared by every session in the process.
type Collectors struct {
	live        prometheus.Gauge
	started     prometheus.Counter
	loadFailed  *prometheus.CounterVec
	submissions *prometheus.CounterVec
	timeTaken   prometheus.Histogram
	rejected    prometheus.Counter
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in
// production so /metrics exposes them.
func New(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		live: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "exstem_portal",
			Name:      "sessions_in_progress",
			Help:      "Assessment sessions currently in progress.",
		}),
		started: f.NewCounter(prometheus.CounterOpts{
			Namespace: "exstem_portal",
			Name:      "sessions_started_total",
			Help:      "Assessment sessions started by students.",
		}),
		loadFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exstem_portal",
			Name:      "session_load_failures_total",
			Help:      "Assessment loads that ended in ERRORED.",
		}, []string{"reason"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exstem_portal",
			Name:      "submissions_total",
			Help:      "Submission attempts by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		timeTaken: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "exstem_portal",
			Name:      "submission_time_taken_seconds",
			Help:      "Time taken reported with each submission.",
			Buckets:   []float64{60, 300, 600, 1200, 1800, 2700, 3600, 5400, 7200},
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: "exstem_portal",
			Name:      "session_lock_rejections_total",
			Help:      "Connections refused because the session was already live elsewhere.",
		}),
	}
}

// StateChanged records the transition.
func (c *Collectors) StateChanged(snap session.Snapshot) {
	switch snap.State {
	case session.StateInProgress:
		c.started.Inc()
		c.live.Inc()
	case session.StateSubmitting:
		c.live.Dec()
		c.timeTaken.Observe(float64(snap.TimeTaken))
	case session.StateSubmitted:
		c.submissions.WithLabelValues(string(snap.Trigger), "submitted").Inc()
	case session.StateErrored:
		if snap.Previous == session.StateSubmitting {
			c.submissions.WithLabelValues(string(snap.Trigger), "failed").Inc()
			return
		}
		reason := "fetch"
		if errors.Is(snap.Err, session.ErrAssessmentNotFound) {
			reason = "not_found"
		} else if errors.Is(snap.Err, model.ErrInvalidAssessment) || errors.Is(snap.Err, model.ErrDuplicateQuestion) {
			reason = "invalid"
		}
		c.loadFailed.WithLabelValues(reason).Inc()
	}
}

// Ticked is not measured.
func (c *Collectors) Ticked(model.ID, int) {}

// Abandoned is called when a session in progress is closed without
// submitting, so the live gauge does not drift.
func (c *Collectors) Abandoned() {
	c.live.Dec()
}

// LockRejected counts a refused duplicate connection.
func (c *Collectors) LockRejected() {
	c.rejected.Inc()
}
