package rooms

import "github.com/mcdev12/roomclocks/go/internal/models"

// CreateRoomRequest represents the data needed to create a room
type CreateRoomRequest struct {
	Name *string `json:"name,omitempty"`
}

// UpdateRoomRequest represents the data that can be updated for a room
type UpdateRoomRequest struct {
	Name *string `json:"name,omitempty"`
}

// DeleteRoomOptions controls room deletion. Without Cascade the room's clocks
// are left in place.
type DeleteRoomOptions struct {
	Cascade bool
}

// Config holds the room creation defaults.
type Config struct {
	DefaultName string
}

// DefaultConfig returns the stock defaults for new rooms.
func DefaultConfig() Config {
	return Config{DefaultName: "New room"}
}

// RoomResponse is the JSON body of room endpoints.
type RoomResponse struct {
	Room *models.Room `json:"room"`
}

// DeleteRoomResponse reports what a delete removed.
type DeleteRoomResponse struct {
	RoomID        string `json:"room_id"`
	ClocksRemoved int    `json:"clocks_removed"`
}
