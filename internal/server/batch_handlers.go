package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// maxBatchFrames caps the number of frames accepted per batch request.
const maxBatchFrames = 32

// BatchDetectRequest carries several prediction frames to process in
// one request, e.g. consecutive video frames.
type BatchDetectRequest struct {
	Frames []BatchFrame `json:"frames"`
	// MinScore applies to every frame that does not set its own.
	MinScore *float64 `json:"min_score,omitempty"`
}

// BatchFrame is a single named frame in a batch request.
type BatchFrame struct {
	Name        string              `json:"name"`
	Predictions []PredictionPayload `json:"predictions"`
	MinScore    *float64            `json:"min_score,omitempty"`
}

// BatchFrameResult is the outcome for one frame.
type BatchFrameResult struct {
	Name       string             `json:"name"`
	Success    bool               `json:"success"`
	Detections []DetectionPayload `json:"detections,omitempty"`
	Count      int                `json:"count"`
	Error      string             `json:"error,omitempty"`
	DurationMs int64              `json:"duration_ms"`
}

// BatchSummary aggregates per-frame outcomes.
type BatchSummary struct {
	TotalFrames   int     `json:"total_frames"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgFrameTime  float64 `json:"avg_frame_time_seconds"`
}

// BatchDetectResponse is the response for batch detection.
type BatchDetectResponse struct {
	Success bool               `json:"success"`
	Results []BatchFrameResult `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
	Summary BatchSummary       `json:"summary"`
}

// detectBatchHandler processes several prediction frames sequentially.
// Frame failures are reported per frame and do not fail the batch.
func (s *Server) detectBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req BatchDetectRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if len(req.Frames) == 0 {
		s.writeErrorResponse(w, "No frames provided in batch request", http.StatusBadRequest)
		return
	}
	if len(req.Frames) > maxBatchFrames {
		s.writeErrorResponse(w,
			fmt.Sprintf("Batch size too large (maximum %d frames)", maxBatchFrames),
			http.StatusBadRequest)
		return
	}

	start := time.Now()
	results, summary := s.processBatch(req)
	total := time.Since(start)

	summary.TotalDuration = total.Seconds()
	summary.AvgFrameTime = summary.TotalDuration / float64(summary.TotalFrames)

	detectRequestsTotal.WithLabelValues("batch", "success").Inc()
	suppressionDuration.WithLabelValues("batch").Observe(total.Seconds())

	response := BatchDetectResponse{
		Success: summary.Failed == 0,
		Results: results,
		Summary: summary,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode batch detect response", "error", err)
	}
}

// processBatch runs every frame in order. Frames stay sequential so
// results are reproducible.
func (s *Server) processBatch(req BatchDetectRequest) ([]BatchFrameResult, BatchSummary) {
	results := make([]BatchFrameResult, 0, len(req.Frames))
	summary := BatchSummary{TotalFrames: len(req.Frames)}

	for _, frame := range req.Frames {
		minScore := frame.MinScore
		if minScore == nil {
			minScore = req.MinScore
		}

		result := s.processBatchFrame(frame, minScore)
		results = append(results, result)
		if result.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	return results, summary
}

// processBatchFrame runs a single frame through the pipeline.
func (s *Server) processBatchFrame(frame BatchFrame, minScore *float64) BatchFrameResult {
	result := BatchFrameResult{Name: frame.Name}

	if len(frame.Predictions) == 0 {
		result.Error = "No prediction rows provided"
		return result
	}

	pl, err := s.pipelineForRequest(minScore)
	if err != nil {
		result.Error = fmt.Sprintf("Invalid min_score: %v", err)
		return result
	}

	start := time.Now()
	detections, err := pl.Run(toPredictions(frame.Predictions))
	result.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = fmt.Sprintf("Detection failed: %v", err)
		return result
	}

	result.Success = true
	result.Detections = toDetectionPayloads(detections)
	result.Count = len(detections)

	inputBoxes.WithLabelValues("batch").Observe(float64(len(frame.Predictions)))
	keptBoxes.WithLabelValues("batch").Observe(float64(len(detections)))

	return result
}
