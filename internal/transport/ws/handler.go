package ws

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"groupplay/internal/store"
)

// Handler upgrades relay connections
type Handler struct {
	backend  store.Backend
	upgrader websocket.Upgrader
	logger   *slog.Logger

	rateLimit rate.Limit
	rateBurst int
}

// NewHandler creates a new WebSocket handler. ratePerSecond <= 0 disables rate limiting.
func NewHandler(backend store.Backend, ratePerSecond float64, burst int, logger *slog.Logger) *Handler {
	return &Handler{
		backend: backend,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Devices join from whatever origin served the app
				return true
			},
		},
		logger:    logger,
		rateLimit: rate.Limit(ratePerSecond),
		rateBurst: burst,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	var limiter *rate.Limiter
	if h.rateLimit > 0 {
		limiter = rate.NewLimiter(h.rateLimit, h.rateBurst)
	}

	connID := uuid.New().String()
	client := NewClient(conn, h.backend, connID, limiter, h.logger)

	h.logger.Info("websocket connected", "connID", connID, "remoteAddr", r.RemoteAddr)

	client.Run()

	h.logger.Info("websocket disconnected", "connID", connID)
}
