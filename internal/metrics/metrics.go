// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	refreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vhsite_content_refresh_total",
			Help: "Content refreshes by result.",
		},
		[]string{"result"},
	)
	refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vhsite_content_refresh_duration_seconds",
			Help:    "Time spent loading CMS content, service times and partner feeds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	feedFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vhsite_partner_feed_failures_total",
			Help: "Partner ICS feeds skipped during a refresh.",
		},
		[]string{"feed"},
	)

	// PlayerSessions is the number of live per-visitor coordinators.
	PlayerSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vhsite_player_sessions",
			Help: "Live visitor player sessions.",
		},
	)
	plays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vhsite_player_plays_total",
			Help: "Play requests by outcome.",
		},
		[]string{"result"},
	)

	chats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vhsite_chat_requests_total",
			Help: "Chat assistant requests by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vhsite_http_requests_total",
			Help: "HTTP requests by method and status code.",
		},
		[]string{"method", "code"},
	)
)

func init() {
	prometheus.MustRegister(
		refreshes,
		refreshDuration,
		feedFailures,
		PlayerSessions,
		plays,
		chats,
		httpRequests,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRefresh records one content refresh.
func ObserveRefresh(took time.Duration, err error) {
	refreshDuration.Observe(took.Seconds())
	refreshes.WithLabelValues(result(err)).Inc()
}

// FeedFailed records a skipped partner feed.
func FeedFailed(feed string) {
	feedFailures.WithLabelValues(feed).Inc()
}

// Play outcomes.
const (
	PlayStarted  = "started"
	PlayNoAudio  = "no_audio"
	PlayNotFound = "not_found"
)

// ObservePlay records a play request.
func ObservePlay(outcome string) {
	plays.WithLabelValues(outcome).Inc()
}

// ObserveChat records a chat request.
func ObserveChat(err error) {
	chats.WithLabelValues(result(err)).Inc()
}

// ObserveHTTP records a finished HTTP request.
func ObserveHTTP(method string, status int) {
	httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
