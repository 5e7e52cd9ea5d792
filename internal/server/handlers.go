package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/detbox/internal/anchors"
	"github.com/MeKo-Tech/detbox/internal/common"
	"github.com/MeKo-Tech/detbox/internal/postprocess"
	"github.com/MeKo-Tech/detbox/internal/targets"
	"github.com/MeKo-Tech/detbox/internal/version"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health response", "error", err)
	}
}

// priorsHandler returns the active prior set, or a built-in profile
// requested by name.
func (s *Server) priorsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	profile := s.pipeline.Config().Profile
	priors := s.pipeline.Priors()

	if name := r.URL.Query().Get("profile"); name != "" && name != profile {
		resolved, err := anchors.ByName(name)
		if err != nil {
			s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		profile = name
		priors = resolved
	}

	response := PriorsResponse{
		Profile: profile,
		Count:   len(priors),
		Priors:  toPriorPayloads(priors),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode priors response", "error", err)
	}
}

// matchHandler assigns posted ground-truth boxes to the prior set and
// optionally encodes the assignments as regression targets.
func (s *Server) matchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MatchRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	matcher := s.matcher
	if req.IoUThreshold != nil {
		m, err := targets.NewMatcher(s.pipeline.Priors(), targets.MatcherConfig{IoUThreshold: *req.IoUThreshold})
		if err != nil {
			s.writeErrorResponse(w, fmt.Sprintf("Invalid iou_threshold: %v", err), http.StatusBadRequest)
			return
		}
		matcher = m
	}

	timer := common.NewNamedTimer("match")
	matched := matcher.Match(toLabeledBoxes(req.Truths))
	timer.Stop()

	response := MatchResponse{
		Success:    true,
		Matches:    fromLabeledBoxes(matched),
		Count:      len(matched),
		Foreground: countForeground(matched),
	}

	if req.Encode {
		encoded, err := targets.Encode(matched, s.pipeline.Priors(), s.variances())
		if err != nil {
			matchRequestsTotal.WithLabelValues("error").Inc()
			s.writeErrorResponse(w, fmt.Sprintf("Encoding failed: %v", err), http.StatusInternalServerError)
			return
		}
		response.Targets = fromEncoded(encoded)
	}

	matchRequestsTotal.WithLabelValues("success").Inc()
	inputBoxes.WithLabelValues("match").Observe(float64(len(req.Truths)))
	keptBoxes.WithLabelValues("match").Observe(float64(response.Foreground))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode match response", "error", err)
	}
}

// detectHandler runs posted prediction rows through decode and
// suppression and returns the surviving detections.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req DetectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if len(req.Predictions) == 0 {
		s.writeErrorResponse(w, "No prediction rows provided", http.StatusBadRequest)
		return
	}

	pl, err := s.pipelineForRequest(req.MinScore)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid min_score: %v", err), http.StatusBadRequest)
		return
	}

	timer := common.NewNamedTimer("detect")
	results, err := pl.Run(toPredictions(req.Predictions))
	elapsed := timer.Stop()

	if err != nil {
		detectRequestsTotal.WithLabelValues("http", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusBadRequest)
		return
	}

	detectRequestsTotal.WithLabelValues("http", "success").Inc()
	suppressionDuration.WithLabelValues("http").Observe(elapsed.Seconds())
	inputBoxes.WithLabelValues("http").Observe(float64(len(req.Predictions)))
	keptBoxes.WithLabelValues("http").Observe(float64(len(results)))

	response := DetectResponse{
		Success:    true,
		Detections: toDetectionPayloads(results),
		Count:      len(results),
	}
	response.Processing.TotalMs = elapsed.Milliseconds()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode detect response", "error", err)
	}
}

// pipelineForRequest returns the shared pipeline, or a derived one when
// the request overrides the score threshold.
func (s *Server) pipelineForRequest(minScore *float64) (*postprocess.Pipeline, error) {
	if minScore == nil {
		return s.pipeline, nil
	}
	cfg := s.pipeline.Config()
	cfg.MinScore = *minScore
	return postprocess.NewWithPriors(s.pipeline.Priors(), cfg)
}

// decodeJSON reads a bounded JSON body into target. Oversized bodies
// report 413, malformed JSON 400.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyMB*1024*1024)

	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeErrorResponse(w, "Request body too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, fmt.Sprintf("Failed to parse JSON request: %v", err), http.StatusBadRequest)
		}
		return false
	}
	return true
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Success: false,
		Error:   message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
