package metrics

import "github.com/prometheus/client_golang/prometheus"

// CancellationMetrics counts cancellation outcomes by actor and stage.
type CancellationMetrics struct {
	total *prometheus.CounterVec
	fees  *prometheus.CounterVec
}

// NewCancellationMetrics registers cancellation counters.
func NewCancellationMetrics(reg prometheus.Registerer) *CancellationMetrics {
	if reg == nil {
		return &CancellationMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cancellations_total",
		Help: "Completed cancellations by actor type and stage.",
	}, []string{"actor", "stage"})
	fees := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cancellation_fees_minor_total",
		Help: "Cancellation fees retained, in minor units.",
	}, []string{"actor"})
	reg.MustRegister(total, fees)
	return &CancellationMetrics{total: total, fees: fees}
}

// Record counts one completed cancellation.
func (c *CancellationMetrics) Record(actor, stage string, feeMinor int64) {
	if c == nil || c.total == nil {
		return
	}
	c.total.WithLabelValues(actor, stage).Inc()
	if feeMinor > 0 {
		c.fees.WithLabelValues(actor).Add(float64(feeMinor))
	}
}
