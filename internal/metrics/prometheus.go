package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector with Prometheus counters and a histogram.
type Prometheus struct {
	matches      *prometheus.CounterVec
	conflicts    *prometheus.CounterVec
	provisioning *prometheus.CounterVec
	latency      prometheus.Histogram
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus creates the collector and registers it with reg
// (prometheus.DefaultRegisterer if nil). namespace defaults to "tablemates".
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "tablemates"
	}

	p := &Prometheus{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "requests_total",
			Help:      "RequestMatch outcomes by result and tier.",
		}, []string{"result", "tier"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "finalize_conflicts_total",
			Help:      "Group commits that lost the race to a concurrent commit, by tier.",
		}, []string{"tier"}),
		provisioning: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "provisioning_failures_total",
			Help:      "Failed chat provisioning calls by operation.",
		}, []string{"op"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "request_duration_seconds",
			Help:      "Duration of RequestMatch calls, settle delay included.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}),
	}

	for _, c := range []prometheus.Collector{p.matches, p.conflicts, p.provisioning, p.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) RecordMatch(result, tier string) {
	p.matches.WithLabelValues(result, tier).Inc()
}

func (p *Prometheus) RecordConflict(tier string) {
	p.conflicts.WithLabelValues(tier).Inc()
}

func (p *Prometheus) RecordProvisioningFailure(op string) {
	p.provisioning.WithLabelValues(op).Inc()
}

func (p *Prometheus) ObserveRequestLatency(d time.Duration) {
	p.latency.Observe(d.Seconds())
}
