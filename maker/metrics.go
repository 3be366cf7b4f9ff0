package maker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for a Maker.
type Metrics struct {
	ConversionsTotal   *prometheus.CounterVec
	ErrorsTotal        *prometheus.CounterVec
	SwapsTotal         prometheus.Counter
	RouteHops          prometheus.Histogram
	ConversionDuration prometheus.Histogram
	TargetDistributed  prometheus.Counter
	AuthorizedCallers  prometheus.Gauge
}

// NewMetrics creates and registers the maker's metrics on reg. RouteHops
// gets one bucket per step up to maxHops.
func NewMetrics(reg prometheus.Registerer, name string, maxHops int) *Metrics {
	return &Metrics{
		ConversionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: name,
			Name:      "conversions_total",
			Help:      "Conversion requests, labeled by outcome.",
		}, []string{"outcome"}),

		ErrorsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Subsystem: name,
			Name:      "errors_total",
			Help:      "Rejected requests, labeled by error type.",
		}, []string{"type"}),

		SwapsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Subsystem: name,
			Name:      "swaps_total",
			Help:      "Swaps executed, including those later rolled back.",
		}),

		RouteHops: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Subsystem: name,
			Name:      "route_hops",
			Help:      "Routing steps taken to convert one pair.",
			Buckets:   prometheus.LinearBuckets(1, 1, maxHops),
		}),

		ConversionDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Subsystem: name,
			Name:      "conversion_duration_seconds",
			Help:      "Time taken by a conversion request.",
			Buckets:   prometheus.DefBuckets,
		}),

		TargetDistributed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Subsystem: name,
			Name:      "target_distributed_total",
			Help:      "Target asset distributed, in base units (float approximation).",
		}),

		AuthorizedCallers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Subsystem: name,
			Name:      "authorized_callers",
			Help:      "Members of the authorized-caller set.",
		}),
	}
}
