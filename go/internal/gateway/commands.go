package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/roomclocks/go/internal/clocks"
	"github.com/mcdev12/roomclocks/go/internal/models"
	"github.com/rs/zerolog/log"
)

// handleClientMessage runs a clock command. Successful commands answer through
// the room feed; failures go back to the sender only.
func (c *Connection) handleClientMessage(message []byte) {
	var cmd ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.sendCommandError(cmd, fmt.Errorf("%w: malformed command: %v", models.ErrValidation, err))
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("action", cmd.Action).
		Str("clock_id", cmd.ClockID).
		Msg("received client command")

	ctx := c.Manager.baseContext()
	if c.Manager.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Manager.config.CommandTimeout)
		defer cancel()
	}

	if _, err := c.Manager.clocks.Transition(ctx, c.RoomID, cmd.ClockID, clocks.Transition(cmd.Action)); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("action", cmd.Action).
			Msg("client command failed")
		c.sendCommandError(cmd, err)
	}
}

func (c *Connection) sendCommandError(cmd ClientCommand, cause error) {
	event, err := newRoomEvent(EventTypeCommandError, c.RoomID, c.Manager.clock.Now(), CommandErrorPayload{
		Action:  cmd.Action,
		ClockID: cmd.ClockID,
		Error:   cause.Error(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build command error")
		return
	}
	c.Manager.SendToConnection(c.RoomID, c.ID, event)
}
