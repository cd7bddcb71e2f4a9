package rooms

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mcdev12/roomclocks/go/internal/httputil"
	"github.com/mcdev12/roomclocks/go/internal/models"
)

// RoomsApp defines what the service layer needs from the rooms application
type RoomsApp interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	UpdateRoom(ctx context.Context, id string, req UpdateRoomRequest) (*models.Room, error)
	DeleteRoom(ctx context.Context, id string, opts DeleteRoomOptions) (int, error)
}

// Service exposes the rooms app over HTTP JSON
type Service struct {
	app RoomsApp
}

// NewService creates a new rooms HTTP service
func NewService(app RoomsApp) *Service {
	return &Service{
		app: app,
	}
}

// RegisterRoutes mounts the room endpoints on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", s.CreateRoom)
	mux.HandleFunc("GET /api/rooms/{roomId}", s.GetRoom)
	mux.HandleFunc("PATCH /api/rooms/{roomId}", s.UpdateRoom)
	mux.HandleFunc("DELETE /api/rooms/{roomId}", s.DeleteRoom)
}

// CreateRoom handles POST /api/rooms
func (s *Service) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	room, err := s.app.CreateRoom(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, RoomResponse{Room: room})
}

// GetRoom handles GET /api/rooms/{roomId}
func (s *Service) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.app.GetRoom(r.Context(), r.PathValue("roomId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoomResponse{Room: room})
}

// UpdateRoom handles PATCH /api/rooms/{roomId}
func (s *Service) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoomRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	room, err := s.app.UpdateRoom(r.Context(), r.PathValue("roomId"), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RoomResponse{Room: room})
}

// DeleteRoom handles DELETE /api/rooms/{roomId}?cascade=true
func (s *Service) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	var opts DeleteRoomOptions
	if v := r.URL.Query().Get("cascade"); v != "" {
		cascade, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, fmt.Errorf("%w: cascade must be a boolean", models.ErrValidation))
			return
		}
		opts.Cascade = cascade
	}

	id := r.PathValue("roomId")
	removed, err := s.app.DeleteRoom(r.Context(), id, opts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DeleteRoomResponse{RoomID: id, ClocksRemoved: removed})
}
