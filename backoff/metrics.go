package backoff

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Attempt outcomes used as the "outcome" label of AttemptsTotal.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeAborted = "aborted"
)

// Metrics holds the Prometheus collectors a controller reports into.
// One Metrics may be shared by many controllers; the "controller" label
// tells them apart.
type Metrics struct {
	AttemptsTotal  *prometheus.CounterVec
	RetriesTotal   *prometheus.CounterVec
	ExhaustedTotal *prometheus.CounterVec
	CancelledTotal *prometheus.CounterVec
	RetryDelay     *prometheus.HistogramVec
	Retrying       *prometheus.GaugeVec

	name string
}

// NewMetrics creates the retry collectors under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total number of operation attempts by outcome",
			},
			[]string{"controller", "outcome"},
		),

		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "scheduled_total",
				Help:      "Total number of retries scheduled after a failed attempt",
			},
			[]string{"controller"},
		),

		ExhaustedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "exhausted_total",
				Help:      "Total number of executions that used up their retry budget",
			},
			[]string{"controller"},
		),

		CancelledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "cancelled_total",
				Help:      "Total number of cancel calls that interrupted an execution",
			},
			[]string{"controller"},
		),

		RetryDelay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "delay_seconds",
				Help:      "Computed delay before each retry in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
			},
			[]string{"controller"},
		),

		Retrying: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "retry",
				Name:      "pending",
				Help:      "Number of retry delays currently pending",
			},
			[]string{"controller"},
		),
	}
}

// Register registers all collectors with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.AttemptsTotal,
		m.RetriesTotal,
		m.ExhaustedTotal,
		m.CancelledTotal,
		m.RetryDelay,
		m.Retrying,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Named returns a view of m labelled with the given controller name.
func (m *Metrics) Named(name string) *Metrics {
	if m == nil {
		return nil
	}
	cp := *m
	cp.name = name
	return &cp
}

func (m *Metrics) attempt(outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(m.name, outcome).Inc()
}

func (m *Metrics) retryScheduled(delay time.Duration) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(m.name).Inc()
	m.RetryDelay.WithLabelValues(m.name).Observe(delay.Seconds())
	m.Retrying.WithLabelValues(m.name).Inc()
}

// retryDone ends a delay counted by retryScheduled, however it ended.
func (m *Metrics) retryDone() {
	if m == nil {
		return
	}
	m.Retrying.WithLabelValues(m.name).Dec()
}

func (m *Metrics) exhausted() {
	if m == nil {
		return
	}
	m.ExhaustedTotal.WithLabelValues(m.name).Inc()
}

func (m *Metrics) cancelled() {
	if m == nil {
		return
	}
	m.CancelledTotal.WithLabelValues(m.name).Inc()
}
