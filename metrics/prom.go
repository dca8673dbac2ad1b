package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codebin_paste_saved_total",
		Help: "no. of pastes saved",
	})
	PasteFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codebin_paste_fetched_total",
		Help: "no. of pastes returned to a caller",
	})
	PinRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codebin_pin_rejected_total",
		Help: "no. of fetches refused for a missing or wrong pin",
	})
	IDCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codebin_id_collisions_total",
		Help: "no. of inserts that hit an existing id and were retried",
	})
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codebin_cache_lookups_total",
			Help: "paste cache lookups by layer and result",
		},
		[]string{"layer", "result"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codebin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codebin_rate_limit_hits_total",
			Help: "no. of requests refused by admission control",
		},
		[]string{"reason"},
	)
	RateLimitKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "codebin_rate_limit_tracked_keys",
		Help: "client/window counters currently held in memory",
	})
)
