package server

import (
	"fmt"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/MeKo-Tech/detbox/internal/render"
)

const (
	defaultCanvasSize = 512
	maxCanvasSize     = 4096
)

// renderHandler runs posted prediction rows through the pipeline and
// returns the detections drawn onto a blank canvas as PNG.
func (s *Server) renderHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RenderRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	if len(req.Predictions) == 0 {
		s.writeErrorResponse(w, "No prediction rows provided", http.StatusBadRequest)
		return
	}

	width := req.Width
	if width == 0 {
		width = defaultCanvasSize
	}
	height := req.Height
	if height == 0 {
		height = defaultCanvasSize
	}
	if width < 1 || width > maxCanvasSize || height < 1 || height > maxCanvasSize {
		s.writeErrorResponse(w,
			fmt.Sprintf("Canvas size %dx%d outside 1..%d", width, height, maxCanvasSize),
			http.StatusBadRequest)
		return
	}

	pl, err := s.pipelineForRequest(req.MinScore)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Invalid min_score: %v", err), http.StatusBadRequest)
		return
	}

	results, err := pl.Run(toPredictions(req.Predictions))
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), http.StatusBadRequest)
		return
	}

	opts := render.DefaultOptions()
	if req.LineWidth > 0 {
		opts.LineWidth = req.LineWidth
	}
	if req.Labels != nil {
		opts.DrawLabels = *req.Labels
	}

	canvas := render.Canvas(width, height, color.White)
	overlay := render.Overlay(canvas, results, opts)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Detection-Count", strconv.Itoa(len(results)))
	if err := png.Encode(w, overlay); err != nil {
		slog.Error("Failed to encode overlay PNG", "error", err)
	}
}
