package persist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "punch",
		Subsystem: "writer",
		Name:      "scheduled_total",
		Help:      "Edits handed to the debounced writer.",
	})

	coalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "punch",
		Subsystem: "writer",
		Name:      "coalesced_total",
		Help:      "Edits merged into an already pending write.",
	})

	cancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "punch",
		Subsystem: "writer",
		Name:      "cancelled_total",
		Help:      "Pending writes abandoned before they ran.",
	})

	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "punch",
		Subsystem: "writer",
		Name:      "retries_total",
		Help:      "Upsert attempts after the first for a write.",
	})

	writesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "punch",
			Subsystem: "writer",
			Name:      "writes_total",
			Help:      "Completed writes by result.",
		},
		[]string{"result"},
	)

	writeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "punch",
		Subsystem: "writer",
		Name:      "write_duration_seconds",
		Help:      "Write latency including retries.",
		Buckets:   prometheus.DefBuckets,
	})
)
