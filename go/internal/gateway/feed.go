package gateway

import (
	"context"
	"time"

	"github.com/mcdev12/roomclocks/go/internal/clocks"
	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomsApp defines what the gateway needs from the rooms application
type RoomsApp interface {
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	WatchRoom(ctx context.Context, id string) (*docstore.Subscription[*models.Room], error)
}

// ClocksApp defines what the gateway needs from the clocks application
type ClocksApp interface {
	WatchClocks(ctx context.Context, roomID string) (*docstore.Subscription[[]models.Clock], error)
	Transition(ctx context.Context, roomID, clockID string, t clocks.Transition) (*models.Clock, error)
}

// roomFeed is the shared store subscription of one room. Fields other than
// ctx and cancel are guarded by the manager's mutex.
type roomFeed struct {
	roomID string
	ctx    context.Context
	cancel context.CancelFunc
	refs   int
	last   []byte // latest encoded room_state for late joiners
}

func newRoomFeed(parent context.Context, roomID string) *roomFeed {
	ctx, cancel := context.WithCancel(parent)
	return &roomFeed{roomID: roomID, ctx: ctx, cancel: cancel}
}

// runFeed follows the room and its clocks and broadcasts a room_state after
// every change until the feed is released.
func (cm *ConnectionManager) runFeed(feed *roomFeed) {
	ctx := feed.ctx

	roomSub, err := cm.rooms.WatchRoom(ctx, feed.roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", feed.roomID).Msg("failed to watch room")
		return
	}
	defer roomSub.Unsubscribe()

	clockSub, err := cm.clocks.WatchClocks(ctx, feed.roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", feed.roomID).Msg("failed to watch clocks")
		return
	}
	defer clockSub.Unsubscribe()

	var refresh <-chan time.Time
	if cm.config.StateRefreshInterval > 0 {
		ticker := cm.clock.NewTicker(cm.config.StateRefreshInterval)
		defer ticker.Stop()
		refresh = ticker.Chan()
	}

	log.Debug().Str("room_id", feed.roomID).Msg("room feed started")
	defer log.Debug().Str("room_id", feed.roomID).Msg("room feed stopped")

	var (
		room       *models.Room
		roomSeen   bool
		roomList   []models.Clock
		clocksSeen bool
	)

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-roomSub.Updates():
			if !ok {
				return
			}
			if r == nil {
				if roomSeen && room != nil {
					cm.broadcast(feed.roomID, EventTypeRoomDeleted, nil)
				}
				room, roomSeen = nil, true
				continue
			}
			room, roomSeen = r, true
		case cs, ok := <-clockSub.Updates():
			if !ok {
				return
			}
			roomList, clocksSeen = cs, true
		case <-refresh:
		}

		if !roomSeen || !clocksSeen {
			continue
		}
		cm.broadcastState(feed.roomID, room, roomList)
	}
}

func (cm *ConnectionManager) broadcastState(roomID string, room *models.Room, list []models.Clock) {
	now := cm.clock.Now()
	cm.broadcast(roomID, EventTypeRoomState, RoomStatePayload{
		Room:   room,
		Clocks: clocks.NewClockViews(list, now),
	})
}

func (cm *ConnectionManager) broadcast(roomID string, eventType EventType, payload any) {
	event, err := newRoomEvent(eventType, roomID, cm.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to build room event")
		return
	}
	cm.BroadcastToRoom(roomID, event)
}
