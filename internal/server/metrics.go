package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detbox_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Detection processing metrics
	detectRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detbox_detect_requests_total",
			Help: "Total number of detection requests",
		},
		[]string{"source", "status"}, // source: http, batch, websocket
	)

	matchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detbox_match_requests_total",
			Help: "Total number of matching requests",
		},
		[]string{"status"},
	)

	suppressionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detbox_suppression_duration_seconds",
			Help:    "Decode and suppression duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"source"},
	)

	inputBoxes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detbox_input_boxes",
			Help:    "Number of boxes entering a request",
			Buckets: []float64{1, 10, 100, 1000, 2500, 5000, 10000, 25000},
		},
		[]string{"source"},
	)

	keptBoxes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "detbox_kept_boxes",
			Help:    "Number of boxes surviving a request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		},
		[]string{"source"},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detbox_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"type"}, // type: minute, hour
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "detbox_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detbox_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
