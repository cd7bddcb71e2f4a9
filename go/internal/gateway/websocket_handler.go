package gateway

import (
	"net/http"

	"github.com/mcdev12/roomclocks/go/internal/httputil"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for room feeds
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleRoomConnection handles GET /ws/rooms/{roomId}
func (h *WebSocketHandler) HandleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")

	// refuse before upgrading so clients get a plain 404
	if _, err := h.connectionManager.rooms.GetRoom(r.Context(), roomID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "anonymous"
	}

	if err := h.connectionManager.UpgradeConnection(w, r, clientID, roomID); err != nil {
		// the upgrader has already answered the request
		log.Error().
			Err(err).
			Str("room_id", roomID).
			Str("client_id", clientID).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/rooms/{roomId}", h.HandleRoomConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
