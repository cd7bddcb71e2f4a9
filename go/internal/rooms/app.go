package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomsRepository defines what the app layer needs from the repository
type RoomsRepository interface {
	CreateRoom(ctx context.Context, name string) (*models.Room, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	UpdateRoom(ctx context.Context, id, name string) (*models.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	WatchRoom(ctx context.Context, id string) (*docstore.Subscription[*models.Room], error)
}

// ClocksApp defines what the rooms app needs from the clocks app
type ClocksApp interface {
	ListClocks(ctx context.Context, roomID string) ([]models.Clock, error)
	RemoveClock(ctx context.Context, roomID, clockID string) error
}

// App handles rooms business logic
type App struct {
	repo   RoomsRepository
	clocks ClocksApp
	cfg    Config
}

// NewApp creates a new rooms App
func NewApp(repo RoomsRepository, clocks ClocksApp, cfg Config) *App {
	return &App{
		repo:   repo,
		clocks: clocks,
		cfg:    cfg,
	}
}

// CreateRoom creates a room, named after the default when no name is given
func (a *App) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	name := a.cfg.DefaultName
	if req.Name != nil {
		name = *req.Name
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	room, err := a.repo.CreateRoom(ctx, name)
	if err != nil {
		return nil, err
	}

	log.Info().Str("room_id", room.ID).Str("name", room.Name).Msg("created room")
	return room, nil
}

// GetRoom retrieves a room by ID
func (a *App) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	return a.repo.GetRoom(ctx, id)
}

// UpdateRoom renames a room
func (a *App) UpdateRoom(ctx context.Context, id string, req UpdateRoomRequest) (*models.Room, error) {
	if req.Name == nil {
		return a.repo.GetRoom(ctx, id)
	}
	if err := validateName(*req.Name); err != nil {
		return nil, err
	}

	room, err := a.repo.UpdateRoom(ctx, id, *req.Name)
	if err != nil {
		return nil, err
	}

	log.Info().Str("room_id", id).Str("name", room.Name).Msg("updated room")
	return room, nil
}

// DeleteRoom deletes a room. With opts.Cascade its clocks are removed first;
// it returns how many clocks were removed.
func (a *App) DeleteRoom(ctx context.Context, id string, opts DeleteRoomOptions) (int, error) {
	if _, err := a.repo.GetRoom(ctx, id); err != nil {
		return 0, err
	}

	removed := 0
	if opts.Cascade {
		clocks, err := a.clocks.ListClocks(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("failed to list clocks of room %s: %w", id, err)
		}
		for _, c := range clocks {
			err := a.clocks.RemoveClock(ctx, id, c.ID)
			if errors.Is(err, docstore.ErrNotFound) {
				continue
			}
			if err != nil {
				return removed, fmt.Errorf("failed to remove clock %s: %w", c.ID, err)
			}
			removed++
		}
	}

	if err := a.repo.DeleteRoom(ctx, id); err != nil {
		return removed, err
	}

	log.Info().
		Str("room_id", id).
		Bool("cascade", opts.Cascade).
		Int("clocks_removed", removed).
		Msg("deleted room")
	return removed, nil
}

// WatchRoom subscribes to a room document
func (a *App) WatchRoom(ctx context.Context, id string) (*docstore.Subscription[*models.Room], error) {
	return a.repo.WatchRoom(ctx, id)
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be empty", models.ErrValidation)
	}
	return nil
}
