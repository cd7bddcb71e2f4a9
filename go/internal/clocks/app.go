package clocks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ClocksRepository defines what the app layer needs from the repository
type ClocksRepository interface {
	RoomExists(ctx context.Context, roomID string) error
	CreateClock(ctx context.Context, roomID, name string, totalSeconds int) (*models.Clock, error)
	GetClock(ctx context.Context, roomID, clockID string) (*models.Clock, error)
	ListClocks(ctx context.Context, roomID string) ([]models.Clock, error)
	UpdateClock(ctx context.Context, roomID, clockID string, req UpdateClockRequest) (*models.Clock, error)
	ApplyEffect(ctx context.Context, roomID, clockID string, effect Effect) error
	DeleteClock(ctx context.Context, roomID, clockID string) error
	WatchClocks(ctx context.Context, roomID string) (*docstore.Subscription[[]models.Clock], error)
}

// App handles clocks business logic
type App struct {
	repo       ClocksRepository
	accounting *Accounting
	cfg        Config
}

// NewApp creates a new clocks App
func NewApp(repo ClocksRepository, accounting *Accounting, cfg Config) *App {
	return &App{
		repo:       repo,
		accounting: accounting,
		cfg:        cfg,
	}
}

// Accounting exposes the transition rules, e.g. for live value derivation.
func (a *App) Accounting() *Accounting {
	return a.accounting
}

// CreateClock creates a clock in an existing room
func (a *App) CreateClock(ctx context.Context, roomID string, req CreateClockRequest) (*models.Clock, error) {
	name := a.cfg.DefaultName
	if req.Name != nil {
		name = *req.Name
	}
	total := a.cfg.DefaultTotalSeconds
	if req.TotalSeconds != nil {
		total = *req.TotalSeconds
	}
	if err := validateClockFields(&name, &total); err != nil {
		return nil, err
	}

	if err := a.repo.RoomExists(ctx, roomID); err != nil {
		return nil, err
	}

	clock, err := a.repo.CreateClock(ctx, roomID, name, total)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("room_id", roomID).
		Str("clock_id", clock.ID).
		Str("name", clock.Name).
		Int("total_seconds", clock.TotalSeconds).
		Msg("created clock")
	return clock, nil
}

// GetClock retrieves a clock by ID
func (a *App) GetClock(ctx context.Context, roomID, clockID string) (*models.Clock, error) {
	return a.repo.GetClock(ctx, roomID, clockID)
}

// ListClocks retrieves the clocks of a room
func (a *App) ListClocks(ctx context.Context, roomID string) ([]models.Clock, error) {
	return a.repo.ListClocks(ctx, roomID)
}

// UpdateClock renames a clock or changes its total
func (a *App) UpdateClock(ctx context.Context, roomID, clockID string, req UpdateClockRequest) (*models.Clock, error) {
	if err := validateClockFields(req.Name, req.TotalSeconds); err != nil {
		return nil, err
	}

	clock, err := a.repo.UpdateClock(ctx, roomID, clockID, req)
	if err != nil {
		return nil, err
	}

	log.Info().Str("room_id", roomID).Str("clock_id", clockID).Msg("updated clock")
	return clock, nil
}

// StartClock starts or re-anchors a clock
func (a *App) StartClock(ctx context.Context, roomID, clockID string) (*models.Clock, error) {
	return a.transition(ctx, roomID, clockID, TransitionStart)
}

// StopClock banks the running interval
func (a *App) StopClock(ctx context.Context, roomID, clockID string) (*models.Clock, error) {
	return a.transition(ctx, roomID, clockID, TransitionStop)
}

// ResetClock zeroes the clock and counts the reset
func (a *App) ResetClock(ctx context.Context, roomID, clockID string) (*models.Clock, error) {
	return a.transition(ctx, roomID, clockID, TransitionReset)
}

// RemoveClock deletes a clock
func (a *App) RemoveClock(ctx context.Context, roomID, clockID string) error {
	_, err := a.transition(ctx, roomID, clockID, TransitionRemove)
	return err
}

// Transition runs a named transition; remove returns a nil clock.
func (a *App) Transition(ctx context.Context, roomID, clockID string, t Transition) (*models.Clock, error) {
	if _, ok := a.accounting.Transition(t, models.Clock{}); !ok {
		return nil, fmt.Errorf("%w: unknown action %q", models.ErrValidation, t)
	}
	return a.transition(ctx, roomID, clockID, t)
}

func (a *App) transition(ctx context.Context, roomID, clockID string, t Transition) (*models.Clock, error) {
	current, err := a.repo.GetClock(ctx, roomID, clockID)
	if err != nil {
		return nil, err
	}

	effect, _ := a.accounting.Transition(t, *current)
	if effect.Noop {
		log.Debug().
			Str("room_id", roomID).
			Str("clock_id", clockID).
			Str("transition", string(t)).
			Bool("running", current.Running).
			Msg("transition is a no-op for current state")
		return current, nil
	}

	if err := a.repo.ApplyEffect(ctx, roomID, clockID, effect); err != nil {
		if errors.Is(err, docstore.ErrPreconditionFailed) {
			// another writer moved the clock into the target state first
			log.Debug().Str("clock_id", clockID).Str("transition", string(t)).Msg("transition lost race, treating as no-op")
			return a.repo.GetClock(ctx, roomID, clockID)
		}
		return nil, fmt.Errorf("failed to %s clock: %w", t, err)
	}

	log.Info().
		Str("room_id", roomID).
		Str("clock_id", clockID).
		Str("transition", string(t)).
		Float64("added_seconds", effect.AddSeconds).
		Msg("clock transition applied")

	if effect.Remove {
		return nil, nil
	}
	clock, err := a.repo.GetClock(ctx, roomID, clockID)
	if err != nil && isNotFound(err) {
		log.Warn().Str("clock_id", clockID).Msg("clock removed right after transition")
	}
	return clock, err
}

// WatchClocks subscribes to live clock lists of a room
func (a *App) WatchClocks(ctx context.Context, roomID string) (*docstore.Subscription[[]models.Clock], error) {
	return a.repo.WatchClocks(ctx, roomID)
}

func validateClockFields(name *string, totalSeconds *int) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return fmt.Errorf("%w: name must not be empty", models.ErrValidation)
	}
	if totalSeconds != nil && *totalSeconds < 0 {
		return fmt.Errorf("%w: total_seconds must not be negative", models.ErrValidation)
	}
	return nil
}
