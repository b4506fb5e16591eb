package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Recorder exposes helpers for recording Prometheus metrics about mirroring.
type Recorder struct {
	entities   *prometheus.CounterVec
	reconciles *prometheus.CounterVec
	attempts   *prometheus.CounterVec
	reachable  prometheus.Gauge
	duration   prometheus.Histogram
}

// NewRecorder constructs a Recorder and registers the metrics with the provided registerer.
// If reg is nil the controller-runtime registry is used, which is what the
// metrics endpoint serves.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = ctrlmetrics.Registry
	}
	r := &Recorder{
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogmirror_entities_total",
			Help: "Entities seen by the processor partitioned by decision.",
		}, []string{"decision"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogmirror_reconciles_total",
			Help: "Reconciliations against the service model store partitioned by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalogmirror_connection_attempts_total",
			Help: "Connection attempts partitioned by result.",
		}, []string{"result"}),
		reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "catalogmirror_remote_reachable",
			Help: "1 while the service model store is connected.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "catalogmirror_reconcile_duration_seconds",
			Help:    "Duration of reconciliations against the service model store.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	r.entities = registerCounterVec(reg, r.entities)
	r.reconciles = registerCounterVec(reg, r.reconciles)
	r.attempts = registerCounterVec(reg, r.attempts)
	r.reachable = registerGauge(reg, r.reachable)
	r.duration = registerHistogram(reg, r.duration)
	return r
}

// ObserveDecision counts an entity handled by the processor.
func (r *Recorder) ObserveDecision(decision string) {
	if r == nil {
		return
	}
	r.entities.WithLabelValues(decision).Inc()
}

// ObserveReconcile records a reconciliation with its outcome and duration.
func (r *Recorder) ObserveReconcile(outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	r.reconciles.WithLabelValues(outcome).Inc()
	r.duration.Observe(duration.Seconds())
}

// ObserveConnectionAttempt counts a connection attempt.
func (r *Recorder) ObserveConnectionAttempt(result string) {
	if r == nil {
		return
	}
	r.attempts.WithLabelValues(result).Inc()
}

// SetRemoteReachable tracks whether the store is connected.
func (r *Recorder) SetRemoteReachable(reachable bool) {
	if r == nil {
		return
	}
	if reachable {
		r.reachable.Set(1)
		return
	}
	r.reachable.Set(0)
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) prometheus.Gauge {
	if err := reg.Register(g); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing
			}
		}
		panic(err)
	}
	return g
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}
