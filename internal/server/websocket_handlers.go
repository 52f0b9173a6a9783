package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/qrscan/internal/pdf"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second

	wsResponseType = "decode_response"
	originWS       = "websocket"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketDecodeRequest is a JSON request sent as a text frame. Binary
// frames carry raw image bytes and need no envelope.
type WebSocketDecodeRequest struct {
	Type      string `json:"type"` // "image" or "pdf"
	Image     []byte `json:"image,omitempty"`
	PDF       []byte `json:"pdf,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Pages     string `json:"pages,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// WebSocketDecodeResponse is sent for every processed frame.
type WebSocketDecodeResponse struct {
	Type      string `json:"type"`
	Status    string `json:"status"` // "processing", "completed", "error"
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// decodeWebSocketHandler handles WebSocket connections for streaming scans.
func (s *Server) decodeWebSocketHandler(w http.ResponseWriter, r *http.Request) {
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
	s.handleWebSocketConnection(r.Context(), conn)
}

// handleWebSocketConnection reads frames until the client goes away.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.BinaryMessage:
			s.processWebSocketImage(ctx, conn, WebSocketDecodeRequest{Type: "image", Image: data}, nextRequestID())
		case websocket.TextMessage:
			s.handleWebSocketMessage(ctx, conn, data)
		}
	}
}

// handleWebSocketMessage dispatches a JSON request.
func (s *Server) handleWebSocketMessage(ctx context.Context, conn WebSocketConnWriter, data []byte) {
	var req WebSocketDecodeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Failed to parse request: %v", err), "")
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = nextRequestID()
	}

	switch req.Type {
	case "", "image":
		s.processWebSocketImage(ctx, conn, req, requestID)
	case "pdf":
		s.processWebSocketPDF(ctx, conn, req, requestID)
	default:
		s.sendWebSocketError(conn, "invalid_request", "Unsupported request type: "+req.Type, requestID)
	}
}

// processWebSocketImage scans one image frame.
func (s *Server) processWebSocketImage(
	ctx context.Context,
	conn WebSocketConnWriter,
	req WebSocketDecodeRequest,
	requestID string,
) {
	if len(req.Image) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No image data provided", requestID)
		return
	}
	if int64(len(req.Image)) > s.maxUploadMB*1024*1024 {
		s.sendWebSocketError(conn, "invalid_request", "File too large", requestID)
		return
	}

	img, _, err := utils.DecodeImageBytes(req.Image)
	if err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("invalid image format: %v", err), requestID)
		return
	}

	ctx, cancel := s.scanContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.ProcessImageContext(ctx, img)
	decodeDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	decodeRequestsTotal.WithLabelValues("websocket", decodeStatus(err)).Inc()
	if err != nil {
		s.sendWebSocketResponse(conn, WebSocketDecodeResponse{
			Type:      wsResponseType,
			Status:    "error",
			Error:     err.Error(),
			ErrorType: "processing_error",
			ErrorKind: errorKind(err),
			RequestID: requestID,
		})
		return
	}

	res.Source = req.Filename
	pipeline.SortCodesTopLeft(res)
	codesPerImage.WithLabelValues("websocket").Observe(float64(len(res.Codes)))
	s.recordHistory(ctx, originWS, res)

	s.sendWebSocketResponse(conn, WebSocketDecodeResponse{
		Type:      wsResponseType,
		Status:    "completed",
		Result:    res,
		RequestID: requestID,
	})
}

// processWebSocketPDF scans an embedded PDF document.
func (s *Server) processWebSocketPDF(
	ctx context.Context,
	conn WebSocketConnWriter,
	req WebSocketDecodeRequest,
	requestID string,
) {
	if len(req.PDF) == 0 {
		s.sendWebSocketError(conn, "invalid_request", "No PDF data provided", requestID)
		return
	}
	if _, err := pdf.ParsePageRange(req.Pages); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("Invalid page range: %v", err), requestID)
		return
	}

	s.sendWebSocketResponse(conn, WebSocketDecodeResponse{
		Type:      wsResponseType,
		Status:    "processing",
		RequestID: requestID,
	})

	ctx, cancel := s.scanContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := s.documents.ProcessBytes(ctx, req.Filename, req.PDF, req.Pages, nil)
	decodeDuration.WithLabelValues("websocket_pdf").Observe(time.Since(start).Seconds())
	if err != nil {
		decodeRequestsTotal.WithLabelValues("websocket_pdf", "error").Inc()
		errType := "processing_error"
		if errors.Is(err, pdf.ErrPasswordRequired) {
			errType = "password_required"
		}
		s.sendWebSocketError(conn, errType, fmt.Sprintf("PDF processing failed: %v", err), requestID)
		return
	}

	decodeRequestsTotal.WithLabelValues("websocket_pdf", "success").Inc()
	codesPerImage.WithLabelValues("websocket_pdf").Observe(float64(len(res.Codes())))

	s.sendWebSocketResponse(conn, WebSocketDecodeResponse{
		Type:      wsResponseType,
		Status:    "completed",
		Result:    res,
		RequestID: requestID,
	})
}

// scanContext is requestContext for callers without an *http.Request.
func (s *Server) scanContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeoutSec <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
}

func nextRequestID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response WebSocketDecodeResponse) {
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
	s.sendWebSocketResponse(conn, WebSocketDecodeResponse{
		Type:      "error",
		Status:    "error",
		Error:     message,
		ErrorType: errorType,
		RequestID: requestID,
	})
}
