package clocks

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomclocks/go/internal/httputil"
	"github.com/mcdev12/roomclocks/go/internal/models"
)

// ClocksApp defines what the service layer needs from the clocks application
type ClocksApp interface {
	CreateClock(ctx context.Context, roomID string, req CreateClockRequest) (*models.Clock, error)
	GetClock(ctx context.Context, roomID, clockID string) (*models.Clock, error)
	ListClocks(ctx context.Context, roomID string) ([]models.Clock, error)
	UpdateClock(ctx context.Context, roomID, clockID string, req UpdateClockRequest) (*models.Clock, error)
	StartClock(ctx context.Context, roomID, clockID string) (*models.Clock, error)
	StopClock(ctx context.Context, roomID, clockID string) (*models.Clock, error)
	ResetClock(ctx context.Context, roomID, clockID string) (*models.Clock, error)
	RemoveClock(ctx context.Context, roomID, clockID string) error
}

// Service exposes the clocks app over HTTP JSON
type Service struct {
	app   ClocksApp
	clock clockwork.Clock
}

// NewService creates a new clocks HTTP service. clock stamps server_time and
// the derived live values of responses.
func NewService(app ClocksApp, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		app:   app,
		clock: clock,
	}
}

// RegisterRoutes mounts the clock endpoints on mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/rooms/{roomId}/clocks", s.ListClocks)
	mux.HandleFunc("POST /api/rooms/{roomId}/clocks", s.CreateClock)
	mux.HandleFunc("GET /api/rooms/{roomId}/clocks/{clockId}", s.GetClock)
	mux.HandleFunc("PATCH /api/rooms/{roomId}/clocks/{clockId}", s.UpdateClock)
	mux.HandleFunc("DELETE /api/rooms/{roomId}/clocks/{clockId}", s.RemoveClock)
	mux.HandleFunc("POST /api/rooms/{roomId}/clocks/{clockId}/start", s.transitionHandler(s.app.StartClock))
	mux.HandleFunc("POST /api/rooms/{roomId}/clocks/{clockId}/stop", s.transitionHandler(s.app.StopClock))
	mux.HandleFunc("POST /api/rooms/{roomId}/clocks/{clockId}/reset", s.transitionHandler(s.app.ResetClock))
}

// CreateClock handles POST /api/rooms/{roomId}/clocks
func (s *Service) CreateClock(w http.ResponseWriter, r *http.Request) {
	var req CreateClockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	clock, err := s.app.CreateClock(r.Context(), r.PathValue("roomId"), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.writeClock(w, http.StatusCreated, clock)
}

// GetClock handles GET /api/rooms/{roomId}/clocks/{clockId}
func (s *Service) GetClock(w http.ResponseWriter, r *http.Request) {
	clock, err := s.app.GetClock(r.Context(), r.PathValue("roomId"), r.PathValue("clockId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.writeClock(w, http.StatusOK, clock)
}

// ListClocks handles GET /api/rooms/{roomId}/clocks
func (s *Service) ListClocks(w http.ResponseWriter, r *http.Request) {
	clocks, err := s.app.ListClocks(r.Context(), r.PathValue("roomId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	now := s.clock.Now()
	httputil.WriteJSON(w, http.StatusOK, ClocksResponse{
		Clocks:     NewClockViews(clocks, now),
		ServerTime: now,
	})
}

// UpdateClock handles PATCH /api/rooms/{roomId}/clocks/{clockId}
func (s *Service) UpdateClock(w http.ResponseWriter, r *http.Request) {
	var req UpdateClockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	clock, err := s.app.UpdateClock(r.Context(), r.PathValue("roomId"), r.PathValue("clockId"), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	s.writeClock(w, http.StatusOK, clock)
}

// RemoveClock handles DELETE /api/rooms/{roomId}/clocks/{clockId}
func (s *Service) RemoveClock(w http.ResponseWriter, r *http.Request) {
	if err := s.app.RemoveClock(r.Context(), r.PathValue("roomId"), r.PathValue("clockId")); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) transitionHandler(fn func(ctx context.Context, roomID, clockID string) (*models.Clock, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clock, err := fn(r.Context(), r.PathValue("roomId"), r.PathValue("clockId"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		s.writeClock(w, http.StatusOK, clock)
	}
}

func (s *Service) writeClock(w http.ResponseWriter, status int, clock *models.Clock) {
	now := s.clock.Now()
	httputil.WriteJSON(w, status, ClockResponse{
		Clock:      NewClockView(*clock, now),
		ServerTime: now,
	})
}
