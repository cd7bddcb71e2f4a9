package clocks

import (
	"time"

	"github.com/mcdev12/roomclocks/go/internal/models"
)

// CreateClockRequest represents the data needed to create a clock. Unset
// fields take the configured defaults.
type CreateClockRequest struct {
	Name         *string `json:"name,omitempty"`
	TotalSeconds *int    `json:"total_seconds,omitempty"`
}

// UpdateClockRequest represents the data that can be updated for a clock
type UpdateClockRequest struct {
	Name         *string `json:"name,omitempty"`
	TotalSeconds *int    `json:"total_seconds,omitempty"`
}

// Config holds the clock creation defaults.
type Config struct {
	DefaultName         string
	DefaultTotalSeconds int
}

// DefaultConfig returns the stock defaults for new clocks.
func DefaultConfig() Config {
	return Config{
		DefaultName:         "New clock",
		DefaultTotalSeconds: 5,
	}
}

// ClockView is a clock plus its live values at a given instant.
type ClockView struct {
	models.Clock
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// NewClockView derives the live values of c at now.
func NewClockView(c models.Clock, now time.Time) ClockView {
	return ClockView{
		Clock:            c,
		ElapsedSeconds:   Elapsed(c, now),
		RemainingSeconds: Remaining(c, now),
	}
}

// NewClockViews derives live values for a list of clocks.
func NewClockViews(cs []models.Clock, now time.Time) []ClockView {
	out := make([]ClockView, len(cs))
	for i, c := range cs {
		out[i] = NewClockView(c, now)
	}
	return out
}

// ClockResponse is the JSON body of single clock endpoints.
type ClockResponse struct {
	Clock      ClockView `json:"clock"`
	ServerTime time.Time `json:"server_time"`
}

// ClocksResponse is the JSON body of the list endpoint.
type ClocksResponse struct {
	Clocks     []ClockView `json:"clocks"`
	ServerTime time.Time   `json:"server_time"`
}
