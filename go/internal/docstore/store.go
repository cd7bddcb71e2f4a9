// Package docstore is a small document store abstraction: collections of
// documents addressed by path, partial updates with atomic field transforms,
// and live subscriptions. Memory, Postgres and Redis adapters are provided.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a read, update or delete targets a missing document.
	ErrNotFound = errors.New("document not found")

	// ErrPreconditionFailed is returned when an Update precondition does not hold.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrInvalidPath is returned for malformed collection or document paths.
	ErrInvalidPath = errors.New("invalid path")
)

// Store is the document store contract used by the rest of the service.
type Store interface {
	// CreateOrMerge writes fields onto ref, creating the document when absent
	// and merging into the existing fields otherwise.
	CreateOrMerge(ctx context.Context, ref DocumentRef, fields Fields) (DocumentRef, error)

	// Add creates a document with a store assigned id.
	Add(ctx context.Context, col CollectionRef, fields Fields) (DocumentRef, error)

	// Update changes the named fields of an existing document. It returns
	// ErrNotFound when the document does not exist and ErrPreconditionFailed
	// when a precondition does not hold.
	Update(ctx context.Context, ref DocumentRef, fields Fields, preconds ...Precondition) error

	// Delete removes a document. It returns ErrNotFound when it does not exist.
	Delete(ctx context.Context, ref DocumentRef) error

	// Get reads one document.
	Get(ctx context.Context, ref DocumentRef) (*Snapshot, error)

	// List reads every document of a collection in creation order.
	List(ctx context.Context, col CollectionRef) ([]Snapshot, error)

	// SubscribeCollection delivers the collection contents now and after every change.
	SubscribeCollection(ctx context.Context, col CollectionRef) (*Subscription[[]Snapshot], error)

	// SubscribeDocument delivers the document now and after every change. A nil
	// value means the document does not exist.
	SubscribeDocument(ctx context.Context, ref DocumentRef) (*Subscription[*Snapshot], error)

	// Hub exposes the change feed of this store.
	Hub() *Hub

	Close() error
}

// ChangeKind describes what happened to a document.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is one write notification.
type Change struct {
	ID   string     `json:"id"`
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
	At   time.Time  `json:"at"`
}

// Collection returns the collection path of the changed document.
func (c Change) Collection() string {
	return collectionOf(c.Path)
}

func newChange(ref DocumentRef, kind ChangeKind, at time.Time) Change {
	return Change{
		ID:   uuid.NewString(),
		Path: ref.Path(),
		Kind: kind,
		At:   at.UTC(),
	}
}

func newDocumentID() string {
	return uuid.NewString()
}

// subscribeCollection and subscribeDocument are shared by the adapters: the
// subscription re-reads through the store whenever the hub reports a matching change.
func subscribeCollection(ctx context.Context, s Store, col CollectionRef) (*Subscription[[]Snapshot], error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}
	path := col.Path()
	return Watch(ctx, s.Hub(),
		func(c Change) bool { return c.Collection() == path },
		func(ctx context.Context) ([]Snapshot, error) { return s.List(ctx, col) },
	), nil
}

func subscribeDocument(ctx context.Context, s Store, ref DocumentRef) (*Subscription[*Snapshot], error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	path := ref.Path()
	return Watch(ctx, s.Hub(),
		func(c Change) bool { return c.Path == path },
		func(ctx context.Context) (*Snapshot, error) {
			snap, err := s.Get(ctx, ref)
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return snap, err
		},
	), nil
}
