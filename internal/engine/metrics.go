package engine

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	MessagesSent        prometheus.Counter
	MessagesFailed      prometheus.Counter
	DispatchesCompleted prometheus.Counter
	DispatchesFailed    prometheus.Counter
	TickDuration        prometheus.Histogram
	InFlight            prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_messages_sent_total",
			Help: "Messages successfully handed to the provider.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_messages_failed_total",
			Help: "Per-contact send failures.",
		}),
		DispatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_completed_total",
			Help: "Dispatches that reached completed status.",
		}),
		DispatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_failed_total",
			Help: "Dispatches that reached failed status.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_tick_duration_seconds",
			Help:    "Duration of one scheduler tick.",
			Buckets: prometheus.DefBuckets,
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_inflight",
			Help: "Dispatches with a unit of work currently in flight.",
		}),
	}
	reg.MustRegister(
		m.MessagesSent,
		m.MessagesFailed,
		m.DispatchesCompleted,
		m.DispatchesFailed,
		m.TickDuration,
		m.InFlight,
	)
	return m
}
