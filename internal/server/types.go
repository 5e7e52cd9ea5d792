// Package server exposes the detection pipeline over HTTP and
// WebSocket: matching and target encoding, decode-and-suppress
// detection, prior set inspection, and PNG overlay rendering.
package server

import (
	"fmt"
	"net/http"

	"github.com/MeKo-Tech/detbox/internal/geometry"
	"github.com/MeKo-Tech/detbox/internal/postprocess"
	"github.com/MeKo-Tech/detbox/internal/targets"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *postprocess.Pipeline
	matcher     *targets.Matcher
	corsOrigin  string
	maxBodyMB   int64
	rateLimiter *RateLimiter
}

// RateLimitConfig holds per-client request caps.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	RequestsPerHour   int
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
	MaxBodyMB  int64
	TimeoutSec int

	// Priors overrides profile resolution when set; required for
	// user-defined profiles.
	Priors   []geometry.CenterBox
	Pipeline postprocess.Config
	Match    targets.MatcherConfig

	RateLimit RateLimitConfig
}

// BoxPayload is a corner-form box as a JSON array
// [min x, min y, max x, max y].
type BoxPayload [4]float64

// LabeledBoxPayload pairs a box with a class label.
type LabeledBoxPayload struct {
	Box   BoxPayload `json:"box"`
	Label int        `json:"label"`
}

// EncodedRowPayload is one regression target row.
type EncodedRowPayload struct {
	Offsets [4]float64 `json:"offsets"`
	Label   int        `json:"label"`
}

// PredictionPayload is one raw network output row.
type PredictionPayload struct {
	Offsets [4]float64 `json:"offsets"`
	Scores  []float64  `json:"scores"`
}

// DetectionPayload is one final detection.
type DetectionPayload struct {
	Box   BoxPayload `json:"box"`
	Label int        `json:"label"`
	Class string     `json:"class,omitempty"`
	Score float64    `json:"score"`
}

// PriorPayload is one prior in center form.
type PriorPayload struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	W  float64 `json:"w"`
	H  float64 `json:"h"`
}

// Request types for API endpoints.
type MatchRequest struct {
	Truths       []LabeledBoxPayload `json:"truths"`
	IoUThreshold *float64            `json:"iou_threshold,omitempty"`
	Encode       bool                `json:"encode,omitempty"`
}

type DetectRequest struct {
	Predictions []PredictionPayload `json:"predictions"`
	MinScore    *float64            `json:"min_score,omitempty"`
}

type RenderRequest struct {
	Predictions []PredictionPayload `json:"predictions"`
	Width       int                 `json:"width,omitempty"`
	Height      int                 `json:"height,omitempty"`
	MinScore    *float64            `json:"min_score,omitempty"`
	LineWidth   int                 `json:"line_width,omitempty"`
	Labels      *bool               `json:"labels,omitempty"`
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

type PriorsResponse struct {
	Profile string         `json:"profile"`
	Count   int            `json:"count"`
	Priors  []PriorPayload `json:"priors"`
}

type MatchResponse struct {
	Success    bool                `json:"success"`
	Matches    []LabeledBoxPayload `json:"matches,omitempty"`
	Targets    []EncodedRowPayload `json:"targets,omitempty"`
	Count      int                 `json:"count"`
	Foreground int                 `json:"foreground"`
	Error      string              `json:"error,omitempty"`
}

type DetectResponse struct {
	Success    bool               `json:"success"`
	Detections []DetectionPayload `json:"detections,omitempty"`
	Count      int                `json:"count"`
	Error      string             `json:"error,omitempty"`
	Processing struct {
		TotalMs int64 `json:"total_ms"`
	} `json:"processing"`
}

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer creates a detection server instance.
func NewServer(config Config) (*Server, error) {
	pl, err := buildPipeline(config)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	matchCfg := config.Match
	if matchCfg.IoUThreshold == 0 {
		matchCfg = targets.DefaultMatcherConfig()
	}
	matcher, err := targets.NewMatcher(pl.Priors(), matchCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build matcher: %w", err)
	}

	maxBodyMB := config.MaxBodyMB
	if maxBodyMB <= 0 {
		maxBodyMB = 10
	}

	var limiter *RateLimiter
	if config.RateLimit.Enabled {
		limiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.RequestsPerHour)
	}

	return &Server{
		pipeline:    pl,
		matcher:     matcher,
		corsOrigin:  config.CORSOrigin,
		maxBodyMB:   maxBodyMB,
		rateLimiter: limiter,
	}, nil
}

func buildPipeline(config Config) (*postprocess.Pipeline, error) {
	if len(config.Priors) > 0 {
		return postprocess.NewWithPriors(config.Priors, config.Pipeline)
	}
	return postprocess.New(config.Pipeline)
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.recoverMiddleware(s.healthHandler)))
	mux.HandleFunc("/priors", s.chain(s.priorsHandler))
	mux.HandleFunc("/match", s.chain(s.matchHandler))
	mux.HandleFunc("/detect", s.chain(s.detectHandler))
	mux.HandleFunc("/detect/batch", s.chain(s.detectBatchHandler))
	mux.HandleFunc("/render", s.chain(s.renderHandler))
	mux.HandleFunc("/ws/detect", s.detectWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// chain applies the standard middleware stack to a handler.
func (s *Server) chain(h http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(s.recoverMiddleware(s.rateLimitMiddleware(h)))
}

// variances returns the offset scaling the pipeline decodes with.
func (s *Server) variances() targets.Variances {
	return s.pipeline.Config().Variances
}

func toLabeledBoxes(rows []LabeledBoxPayload) []targets.LabeledBox {
	out := make([]targets.LabeledBox, len(rows))
	for i, row := range rows {
		out[i] = targets.LabeledBox{
			Box:   geometry.Box{MinX: row.Box[0], MinY: row.Box[1], MaxX: row.Box[2], MaxY: row.Box[3]},
			Label: row.Label,
		}
	}
	return out
}

func fromLabeledBoxes(rows []targets.LabeledBox) []LabeledBoxPayload {
	out := make([]LabeledBoxPayload, len(rows))
	for i, row := range rows {
		out[i] = LabeledBoxPayload{
			Box:   BoxPayload{row.Box.MinX, row.Box.MinY, row.Box.MaxX, row.Box.MaxY},
			Label: row.Label,
		}
	}
	return out
}

func fromEncoded(rows []targets.Encoded) []EncodedRowPayload {
	out := make([]EncodedRowPayload, len(rows))
	for i, row := range rows {
		out[i] = EncodedRowPayload{
			Offsets: [4]float64{row.DX, row.DY, row.DW, row.DH},
			Label:   row.Label,
		}
	}
	return out
}

func toPredictions(rows []PredictionPayload) []postprocess.Prediction {
	out := make([]postprocess.Prediction, len(rows))
	for i, row := range rows {
		out[i] = postprocess.Prediction{Offsets: row.Offsets, Scores: row.Scores}
	}
	return out
}

func toDetectionPayloads(results []postprocess.Result) []DetectionPayload {
	out := make([]DetectionPayload, len(results))
	for i, res := range results {
		out[i] = DetectionPayload{
			Box:   BoxPayload{res.Box.MinX, res.Box.MinY, res.Box.MaxX, res.Box.MaxY},
			Label: res.Label,
			Class: res.Class,
			Score: res.Score,
		}
	}
	return out
}

func toPriorPayloads(priors []geometry.CenterBox) []PriorPayload {
	out := make([]PriorPayload, len(priors))
	for i, p := range priors {
		out[i] = PriorPayload{CX: p.CX, CY: p.CY, W: p.W, H: p.H}
	}
	return out
}

func countForeground(rows []targets.LabeledBox) int {
	n := 0
	for _, row := range rows {
		if row.Label != targets.BackgroundLabel {
			n++
		}
	}
	return n
}
