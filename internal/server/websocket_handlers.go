package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should check against allowed origins
		return true
	},
}

// WebSocketDetectRequest is one prediction frame sent by the client.
type WebSocketDetectRequest struct {
	Type        string              `json:"type"` // "detect"
	Predictions []PredictionPayload `json:"predictions,omitempty"`
	MinScore    *float64            `json:"min_score,omitempty"`
	FrameID     string              `json:"frame_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketDetectResponse is one detection frame sent back to the client.
type WebSocketDetectResponse struct {
	Type       string             `json:"type"`
	Status     string             `json:"status"` // "completed", "error"
	Detections []DetectionPayload `json:"detections,omitempty"`
	Count      int                `json:"count"`
	DurationMs int64              `json:"duration_ms,omitempty"`
	Error      string             `json:"error,omitempty"`
	ErrorType  string             `json:"error_type,omitempty"`
	FrameID    string             `json:"frame_id,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
}

// detectWebSocketHandler handles WebSocket connections for streaming
// detection, one prediction frame per message.
func (s *Server) detectWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	s.handleWebSocketConnection(conn)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn) {
	// Set read deadline to prevent hanging connections
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// Send ping messages to keep connection alive
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleWebSocketMessage(conn, data)
		}
	}
}

// handleWebSocketMessage parses and dispatches a single frame.
func (s *Server) handleWebSocketMessage(conn *websocket.Conn, data []byte) {
	var req WebSocketDetectRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err), "")
		return
	}

	requestID := strconv.FormatInt(time.Now().UnixNano(), 10)

	switch req.Type {
	case "detect":
		s.processWebSocketDetect(conn, req, requestID)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type, requestID)
	}
}

// processWebSocketDetect runs one prediction frame through the pipeline.
func (s *Server) processWebSocketDetect(conn *websocket.Conn, req WebSocketDetectRequest, requestID string) {
	if len(req.Predictions) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No prediction rows provided", requestID)
		return
	}

	pipeline, err := s.pipelineForRequest(req.MinScore)
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Invalid min_score: %v", err), requestID)
		return
	}

	start := time.Now()
	results, err := pipeline.Run(toPredictions(req.Predictions))
	duration := time.Since(start)

	if err != nil {
		detectRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, "processing_error", fmt.Sprintf("Detection failed: %v", err), requestID)
		return
	}

	detectRequestsTotal.WithLabelValues("websocket", "success").Inc()
	suppressionDuration.WithLabelValues("websocket").Observe(duration.Seconds())
	inputBoxes.WithLabelValues("websocket").Observe(float64(len(req.Predictions)))
	keptBoxes.WithLabelValues("websocket").Observe(float64(len(results)))

	s.sendWebSocketResponse(conn, WebSocketDetectResponse{
		Type:       "detect_response",
		Status:     "completed",
		Detections: toDetectionPayloads(results),
		Count:      len(results),
		DurationMs: duration.Milliseconds(),
		FrameID:    req.FrameID,
		RequestID:  requestID,
	})
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketDetectResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message, requestID string) {
	response := WebSocketDetectResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	}

	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal WebSocket error response", "error", err)
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("Failed to send WebSocket error message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
