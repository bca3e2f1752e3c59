package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "support_ws_active_connections",
		Help: "Active websocket connections",
	})
	MutationConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "support_mutation_conflicts_total",
		Help: "Thread writes rejected by a version conflict",
	})
	RetriesExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "support_mutation_retries_exhausted_total",
		Help: "Thread mutations that gave up after the retry budget",
	})
	FanoutEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "support_fanout_events_total",
		Help: "Realtime events published, by type",
	}, []string{"type"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "support_notifications_total",
		Help: "Notification deliveries, by result",
	}, []string{"result"})
	RateLimited = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "support_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)

var once sync.Once

func Init() {
	once.Do(func() {
		prometheus.MustRegister(Connections, MutationConflicts, RetriesExhausted, FanoutEvents, Notifications, RateLimited)
	})
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
