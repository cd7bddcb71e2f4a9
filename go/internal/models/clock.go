package models

import "time"

// Collection names of the document layout: rooms/{roomId}/clocks/{clockId}.
const (
	RoomsCollection  = "rooms"
	ClocksCollection = "clocks"
)

// Clock is a countdown clock inside a room. SecondsPassed only holds the time
// banked by stop; the live value also counts the interval since StartAt while
// Running.
type Clock struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	Ref           string    `json:"ref"`
	Name          string    `json:"name"`
	Running       bool      `json:"running"`
	StartAt       time.Time `json:"start_at"`
	SecondsPassed float64   `json:"seconds_passed"`
	NumResets     int       `json:"num_resets"`
	TotalSeconds  int       `json:"total_seconds"`
}
