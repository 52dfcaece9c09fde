package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"FlareCast/internal/domain/models"
	domrepo "FlareCast/internal/domain/repository"
	xlogger "FlareCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 8
	maxMessageSize = 512
)

// LiveHub pushes each newly persisted prediction to connected WebSocket
// clients. It implements AlertPublisher so the pipeline can notify it the
// same way it notifies Kafka. Slow clients are dropped rather than allowed
// to block the broadcast.
type LiveHub struct {
	logger   *xlogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func NewLiveHub(logger *xlogger.Logger) *LiveHub {
	return &LiveHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The frontend is served from another origin; CORS policy is
			// enforced at the HTTP layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Serve upgrades the request and streams predictions until the client
// disconnects.
func (h *LiveHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	send := make(chan []byte, clientBuffer)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()
	h.logger.Info("live client connected", xlogger.Int("clients", h.ClientCount()))

	go h.writeLoop(conn, send)
	go h.readLoop(conn)
	return nil
}

func (h *LiveHub) writeLoop(conn *websocket.Conn, send chan []byte) {
	defer h.drop(conn)
	for msg := range send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage, nil)
}

// readLoop discards inbound frames; it exists to notice disconnects.
func (h *LiveHub) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *LiveHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	_ = conn.Close()
}

// PublishPrediction broadcasts a prediction to all connected clients.
func (h *LiveHub) PublishPrediction(ctx context.Context, p models.Prediction) error {
	msg, err := json.Marshal(models.PredictionRecord{
		Timestamp:         p.Timestamp.UTC().Format(time.RFC3339),
		MClassProbability: p.MClassProbability,
		RiskLevel:         string(p.RiskLevel),
		ModelVersion:      p.ModelVersion,
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	for conn, send := range h.clients {
		select {
		case send <- msg:
		default:
			// Buffer full: client too slow, disconnect it.
			delete(h.clients, conn)
			close(send)
		}
	}
	h.mu.Unlock()
	return nil
}

// ClientCount returns the number of connected clients.
func (h *LiveHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *LiveHub) Close() error {
	h.mu.Lock()
	for conn, send := range h.clients {
		delete(h.clients, conn)
		close(send)
		_ = conn.Close()
	}
	h.mu.Unlock()
	return nil
}

var _ domrepo.AlertPublisher = (*LiveHub)(nil)
