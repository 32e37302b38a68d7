package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the matchmaking counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Submissions     *prometheus.CounterVec
	Outcomes        *prometheus.CounterVec
	Supersessions   prometheus.Counter
	BusEvents       *prometheus.CounterVec
	MalformedEvents *prometheus.CounterVec
	PoolErrors      *prometheus.CounterVec
	Waiting         prometheus.Gauge

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// NewMetrics registers the metrics on reg. Pass prometheus.DefaultRegisterer in
// production and prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peermatch_submissions_total",
				Help: "Match requests submitted, by immediate result",
			},
			[]string{"result"},
		),
		Outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peermatch_outcomes_total",
				Help: "Resolved completion handles, by terminal state",
			},
			[]string{"state"},
		),
		Supersessions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "peermatch_supersessions_total",
				Help: "Pending requests evicted by a newer request from the same user",
			},
		),
		BusEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peermatch_bus_events_total",
				Help: "Bus events received, by kind",
			},
			[]string{"kind"},
		),
		MalformedEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peermatch_bus_malformed_total",
				Help: "Bus payloads dropped because they could not be decoded",
			},
			[]string{"channel"},
		),
		PoolErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peermatch_pool_errors_total",
				Help: "Pool store failures, by operation",
			},
			[]string{"op"},
		),
		Waiting: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "peermatch_waiting_requests",
				Help: "Completion handles currently held by this instance",
			},
		),
		CacheHits: f.NewCounter(
			prometheus.CounterOpts{
				Name: "peermatch_preference_cache_hits_total",
				Help: "Preference cache hits",
			},
		),
		CacheMisses: f.NewCounter(
			prometheus.CounterOpts{
				Name: "peermatch_preference_cache_misses_total",
				Help: "Preference cache misses",
			},
		),
	}
}

func (m *Metrics) Submitted(result string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) Resolved(state string) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(state).Inc()
}

func (m *Metrics) Superseded() {
	if m == nil {
		return
	}
	m.Supersessions.Inc()
}

func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.BusEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) Malformed(channel string) {
	if m == nil {
		return
	}
	m.MalformedEvents.WithLabelValues(channel).Inc()
}

func (m *Metrics) PoolError(op string) {
	if m == nil {
		return
	}
	m.PoolErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) SetWaiting(n int) {
	if m == nil {
		return
	}
	m.Waiting.Set(float64(n))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}
