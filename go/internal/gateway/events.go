package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/roomclocks/go/internal/clocks"
	"github.com/mcdev12/roomclocks/go/internal/models"
)

// EventType represents the type of room event
type EventType string

const (
	EventTypeRoomState    EventType = "room_state"
	EventTypeRoomDeleted  EventType = "room_deleted"
	EventTypeCommandError EventType = "command_error"
)

// RoomEvent is the envelope of every server to client message
type RoomEvent struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	RoomID     string          `json:"room_id"`
	ServerTime time.Time       `json:"server_time"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// RoomStatePayload is the full room picture. Clients count clocks forward from
// server_time until the next push.
type RoomStatePayload struct {
	Room   *models.Room       `json:"room,omitempty"`
	Clocks []clocks.ClockView `json:"clocks"`
}

// CommandErrorPayload tells one client its command failed
type CommandErrorPayload struct {
	Action  string `json:"action"`
	ClockID string `json:"clock_id"`
	Error   string `json:"error"`
}

// ClientCommand is a client to server message
type ClientCommand struct {
	Action  string `json:"action"`
	ClockID string `json:"clock_id"`
}

func newRoomEvent(eventType EventType, roomID string, now time.Time, payload any) (*RoomEvent, error) {
	event := &RoomEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		RoomID:     roomID,
		ServerTime: now,
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		event.Data = data
	}
	return event, nil
}
