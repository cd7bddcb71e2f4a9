package rooms

import (
	"context"
	"fmt"

	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
)

const fieldName = "name"

// Repository implements room data access on a document store
type Repository struct {
	store docstore.Store
}

// NewRepository creates a new rooms repository
func NewRepository(store docstore.Store) *Repository {
	return &Repository{
		store: store,
	}
}

func roomsCollection() docstore.CollectionRef {
	return docstore.Collection(models.RoomsCollection)
}

func roomRef(id string) docstore.DocumentRef {
	return roomsCollection().Doc(id)
}

// CreateRoom adds a room document
func (r *Repository) CreateRoom(ctx context.Context, name string) (*models.Room, error) {
	ref, err := r.store.Add(ctx, roomsCollection(), docstore.Fields{fieldName: name})
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}
	return r.GetRoom(ctx, ref.ID())
}

// GetRoom retrieves a room by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	snap, err := r.store.Get(ctx, roomRef(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	room := snapshotToRoom(*snap)
	return &room, nil
}

// UpdateRoom renames a room
func (r *Repository) UpdateRoom(ctx context.Context, id, name string) (*models.Room, error) {
	if err := r.store.Update(ctx, roomRef(id), docstore.Fields{fieldName: name}); err != nil {
		return nil, fmt.Errorf("failed to update room: %w", err)
	}
	return r.GetRoom(ctx, id)
}

// DeleteRoom removes the room document only
func (r *Repository) DeleteRoom(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, roomRef(id)); err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// WatchRoom subscribes to a room document. A nil value means the room is gone.
func (r *Repository) WatchRoom(ctx context.Context, id string) (*docstore.Subscription[*models.Room], error) {
	sub, err := r.store.SubscribeDocument(ctx, roomRef(id))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to room: %w", err)
	}
	return docstore.Map(sub, func(s *docstore.Snapshot) *models.Room {
		if s == nil {
			return nil
		}
		room := snapshotToRoom(*s)
		return &room
	}), nil
}

func snapshotToRoom(s docstore.Snapshot) models.Room {
	return models.Room{
		ID:        s.ID(),
		Ref:       s.Ref.Path(),
		Name:      s.String(fieldName),
		CreatedAt: s.CreateTime,
		UpdatedAt: s.UpdateTime,
	}
}
