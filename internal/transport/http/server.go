package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"groupplay/internal/config"
	"groupplay/internal/store"
	"groupplay/internal/transport/ws"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	backend store.Backend
	config  *config.Config
	logger  *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, backend store.Backend, logger *slog.Logger) *Server {
	s := &Server{
		backend: backend,
		config:  cfg,
		logger:  logger,
	}

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Routes builds the router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.middleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/rooms/{roomCode}", s.handleGetRoom)
		r.Get("/rooms/{roomCode}/exists", s.handleRoomExists)
		r.Get("/rooms/{roomCode}/qr.png", s.handleRoomQR)
	})

	// Invite links land here
	r.Get("/join/{roomCode}", s.handleJoin)

	// WebSocket relay
	r.Handle("/ws", ws.NewHandler(s.backend, s.config.Server.WSRate, s.config.Server.WSBurst, s.logger))

	return r
}

// middleware wraps the handler with logging and CORS headers
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		level := slog.LevelDebug
		if s.config.IsDevelopment() || wrapped.statusCode >= http.StatusInternalServerError {
			level = slog.LevelInfo
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
		)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
