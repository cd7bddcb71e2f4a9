package clocks

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
)

// Document field names of a clock.
const (
	fieldName          = "name"
	fieldRunning       = "running"
	fieldStartAt       = "start_at"
	fieldSecondsPassed = "seconds_passed"
	fieldNumResets     = "num_resets"
	fieldTotalSeconds  = "total_seconds"
)

// Repository implements clock data access on a document store
type Repository struct {
	store docstore.Store
}

// NewRepository creates a new clocks repository
func NewRepository(store docstore.Store) *Repository {
	return &Repository{
		store: store,
	}
}

func roomRef(roomID string) docstore.DocumentRef {
	return docstore.Collection(models.RoomsCollection).Doc(roomID)
}

func clocksCollection(roomID string) docstore.CollectionRef {
	return roomRef(roomID).Sub(models.ClocksCollection)
}

func clockRef(roomID, clockID string) docstore.DocumentRef {
	return clocksCollection(roomID).Doc(clockID)
}

// RoomExists returns docstore.ErrNotFound when the room document is missing.
func (r *Repository) RoomExists(ctx context.Context, roomID string) error {
	if _, err := r.store.Get(ctx, roomRef(roomID)); err != nil {
		return fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	return nil
}

// CreateClock adds a clock document. start_at is stamped by the store.
func (r *Repository) CreateClock(ctx context.Context, roomID, name string, totalSeconds int) (*models.Clock, error) {
	ref, err := r.store.Add(ctx, clocksCollection(roomID), docstore.Fields{
		fieldName:          name,
		fieldRunning:       false,
		fieldStartAt:       docstore.ServerTimestamp(),
		fieldSecondsPassed: 0,
		fieldNumResets:     0,
		fieldTotalSeconds:  totalSeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create clock: %w", err)
	}
	return r.getByRef(ctx, ref)
}

// GetClock retrieves a clock by ID
func (r *Repository) GetClock(ctx context.Context, roomID, clockID string) (*models.Clock, error) {
	return r.getByRef(ctx, clockRef(roomID, clockID))
}

func (r *Repository) getByRef(ctx context.Context, ref docstore.DocumentRef) (*models.Clock, error) {
	snap, err := r.store.Get(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get clock: %w", err)
	}
	clock := snapshotToClock(*snap)
	return &clock, nil
}

// ListClocks retrieves the clocks of a room in creation order
func (r *Repository) ListClocks(ctx context.Context, roomID string) ([]models.Clock, error) {
	snaps, err := r.store.List(ctx, clocksCollection(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to list clocks: %w", err)
	}
	return snapshotsToClocks(snaps), nil
}

// UpdateClock writes the non-nil request fields
func (r *Repository) UpdateClock(ctx context.Context, roomID, clockID string, req UpdateClockRequest) (*models.Clock, error) {
	fields := docstore.Fields{}
	if req.Name != nil {
		fields[fieldName] = *req.Name
	}
	if req.TotalSeconds != nil {
		fields[fieldTotalSeconds] = *req.TotalSeconds
	}
	ref := clockRef(roomID, clockID)
	if len(fields) > 0 {
		if err := r.store.Update(ctx, ref, fields); err != nil {
			return nil, fmt.Errorf("failed to update clock: %w", err)
		}
	}
	return r.getByRef(ctx, ref)
}

// ApplyEffect persists a transition effect. Banked seconds and the reset
// counter are written as store side increments.
func (r *Repository) ApplyEffect(ctx context.Context, roomID, clockID string, effect Effect) error {
	ref := clockRef(roomID, clockID)
	if effect.Remove {
		return r.DeleteClock(ctx, roomID, clockID)
	}

	fields, preconds := effectToFields(effect)
	if len(fields) == 0 {
		return nil
	}
	if err := r.store.Update(ctx, ref, fields, preconds...); err != nil {
		return fmt.Errorf("failed to update clock: %w", err)
	}
	return nil
}

// DeleteClock removes a clock document
func (r *Repository) DeleteClock(ctx context.Context, roomID, clockID string) error {
	if err := r.store.Delete(ctx, clockRef(roomID, clockID)); err != nil {
		return fmt.Errorf("failed to delete clock: %w", err)
	}
	return nil
}

// WatchClocks subscribes to the clocks of a room
func (r *Repository) WatchClocks(ctx context.Context, roomID string) (*docstore.Subscription[[]models.Clock], error) {
	sub, err := r.store.SubscribeCollection(ctx, clocksCollection(roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to clocks: %w", err)
	}
	return docstore.Map(sub, snapshotsToClocks), nil
}

func effectToFields(e Effect) (docstore.Fields, []docstore.Precondition) {
	fields := docstore.Fields{}
	if e.Running != nil {
		fields[fieldRunning] = *e.Running
	}
	if e.StartAt != nil {
		fields[fieldStartAt] = e.StartAt.UTC()
	}
	switch {
	case e.ResetSeconds:
		fields[fieldSecondsPassed] = e.AddSeconds
	case e.AddSeconds != 0:
		fields[fieldSecondsPassed] = docstore.Increment(e.AddSeconds)
	}
	if e.AddResets != 0 {
		fields[fieldNumResets] = docstore.Increment(float64(e.AddResets))
	}

	var preconds []docstore.Precondition
	if e.RequireRunning != nil {
		preconds = append(preconds, docstore.FieldEquals(fieldRunning, *e.RequireRunning))
	}
	return fields, preconds
}

func snapshotToClock(s docstore.Snapshot) models.Clock {
	var roomID string
	if parent, ok := s.Ref.Collection().Parent(); ok {
		roomID = parent.ID()
	}
	return models.Clock{
		ID:            s.ID(),
		RoomID:        roomID,
		Ref:           s.Ref.Path(),
		Name:          s.String(fieldName),
		Running:       s.Bool(fieldRunning),
		StartAt:       s.Time(fieldStartAt),
		SecondsPassed: s.Float(fieldSecondsPassed),
		NumResets:     int(s.Int(fieldNumResets)),
		TotalSeconds:  int(s.Int(fieldTotalSeconds)),
	}
}

func snapshotsToClocks(snaps []docstore.Snapshot) []models.Clock {
	out := make([]models.Clock, len(snaps))
	for i, s := range snaps {
		out[i] = snapshotToClock(s)
	}
	return out
}

// isNotFound reports whether err is a missing document.
func isNotFound(err error) bool {
	return errors.Is(err, docstore.ErrNotFound)
}
