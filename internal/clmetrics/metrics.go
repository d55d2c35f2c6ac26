package clmetrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubpulse_events_queued_total",
			Help: "Events appended to the batch queue",
		},
		[]string{"event_type"},
	)

	eventsFlushed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubpulse_events_flushed_total",
			Help: "Events written to club storage",
		},
		[]string{"club"},
	)

	// pertes acceptées, pas de nouvelle tentative
	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubpulse_events_dropped_total",
			Help: "Events lost after a failed group write",
		},
		[]string{"club"},
	)

	flushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubpulse_flush_duration_seconds",
			Help:    "Duration of batch flushes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clubpulse_queue_depth",
			Help: "Entries waiting in the batch queue",
		},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubpulse_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func EventQueued(eventType string) {
	eventsQueued.WithLabelValues(eventType).Inc()
}

func EventsFlushed(club string, n int) {
	eventsFlushed.WithLabelValues(club).Add(float64(n))
}

func EventsDropped(club string, n int) {
	eventsDropped.WithLabelValues(club).Add(float64(n))
}

// ObserveFlush trigger vaut "size", "timer" ou "drain"
func ObserveFlush(trigger string, started time.Time) {
	flushDuration.WithLabelValues(trigger).Observe(time.Since(started).Seconds())
}

func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// Collect mesure la durée des requêtes par route
func Collect() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
