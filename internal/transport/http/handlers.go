package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"groupplay/internal/domain"
	"groupplay/internal/store"
)

// qrSize is the invite image edge in pixels
const qrSize = 320

// Response is a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetRoomResponse is the response for getting room info
type GetRoomResponse struct {
	RoomCode    string          `json:"roomCode"`
	PlayerCount int             `json:"playerCount"`
	Phase       string          `json:"phase"`
	Category    domain.Category `json:"category"`
	CanJoin     bool            `json:"canJoin"`
	InviteLink  string          `json:"inviteLink"`
}

// JoinResponse tells an invited player how to reach a room
type JoinResponse struct {
	RoomCode string `json:"roomCode"`
	RelayURL string `json:"relayUrl"`
	Command  string `json:"command"`
	CanJoin  bool   `json:"canJoin"`
}

// RoomExistsResponse is the response for checking if room exists
type RoomExistsResponse struct {
	Exists bool `json:"exists"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	ActiveRooms  int `json:"activeRooms"`
	TotalPlayers int `json:"totalPlayers"`
}

// handleGetRoom handles GET /api/rooms/{roomCode}
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}

	maxPlayers := s.config.Game.MaxPlayers
	s.sendSuccess(w, &GetRoomResponse{
		RoomCode:    room.ID,
		PlayerCount: len(room.Players),
		Phase:       room.Phase().String(),
		Category:    room.Category,
		CanJoin:     maxPlayers == 0 || len(room.Players) < maxPlayers,
		InviteLink:  inviteLink(r, room.ID),
	})
}

// handleJoin handles GET /join/{roomCode}, the target of invite links and QR codes
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}

	relayURL := relayLink(r)
	maxPlayers := s.config.Game.MaxPlayers
	s.sendSuccess(w, &JoinResponse{
		RoomCode: room.ID,
		RelayURL: relayURL,
		Command:  "partyctl join " + room.ID + " --relay-url " + relayURL,
		CanJoin:  maxPlayers == 0 || len(room.Players) < maxPlayers,
	})
}

// handleRoomExists handles GET /api/rooms/{roomCode}/exists
func (s *Server) handleRoomExists(w http.ResponseWriter, r *http.Request) {
	roomCode := domain.NormalizeRoomCode(chi.URLParam(r, "roomCode"))
	if !domain.ValidRoomCode(roomCode) {
		s.sendSuccess(w, &RoomExistsResponse{Exists: false})
		return
	}

	_, err := s.backend.Get(r.Context(), roomCode)
	if err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		s.storeError(w, err)
		return
	}

	s.sendSuccess(w, &RoomExistsResponse{
		Exists: err == nil,
	})
}

// handleRoomQR handles GET /api/rooms/{roomCode}/qr.png, a scannable invite link
func (s *Server) handleRoomQR(w http.ResponseWriter, r *http.Request) {
	room, ok := s.loadRoom(w, r)
	if !ok {
		return
	}

	png, err := qrcode.Encode(inviteLink(r, room.ID), qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error("qr generation failed", "roomCode", room.ID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "QR generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.backend.(store.StatsProvider)
	if !ok {
		s.sendError(w, http.StatusNotImplemented, "NOT_SUPPORTED", "Backend does not report stats")
		return
	}

	stats, err := provider.Stats(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.sendSuccess(w, &StatsResponse{
		ActiveRooms:  stats.Rooms,
		TotalPlayers: stats.Players,
	})
}

// loadRoom fetches the room named in the path, writing the error response on failure
func (s *Server) loadRoom(w http.ResponseWriter, r *http.Request) (domain.Room, bool) {
	roomCode := domain.NormalizeRoomCode(chi.URLParam(r, "roomCode"))
	if !domain.ValidRoomCode(roomCode) {
		s.sendError(w, http.StatusBadRequest, "INVALID_ROOM_CODE", "Room code is invalid")
		return domain.Room{}, false
	}

	room, err := s.backend.Get(r.Context(), roomCode)
	if err != nil {
		s.storeError(w, err)
		return domain.Room{}, false
	}
	return room, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		s.sendError(w, http.StatusNotFound, "ROOM_NOT_FOUND", "Room not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		s.logger.Warn("store unavailable", "error", err)
		s.sendError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Room store unavailable")
	default:
		s.logger.Error("store error", "error", err)
		s.sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

// inviteLink builds the join URL for a room from the request host
func inviteLink(r *http.Request, roomCode string) string {
	scheme := "http"
	if isTLS(r) {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/join/" + roomCode
}

// relayLink is the websocket relay URL on the request host
func relayLink(r *http.Request) string {
	scheme := "ws"
	if isTLS(r) {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + "/ws"
}

func isTLS(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
