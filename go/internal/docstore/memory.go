package docstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type memoryDoc struct {
	ref     DocumentRef
	fields  Fields
	created time.Time
	updated time.Time
	seq     uint64
}

func (d *memoryDoc) snapshot() Snapshot {
	return Snapshot{
		Ref:        d.ref,
		Fields:     d.fields.Clone(),
		CreateTime: d.created,
		UpdateTime: d.updated,
	}
}

// MemoryStore keeps documents in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*memoryDoc
	seq   uint64
	clock clockwork.Clock
	hub   *Hub
}

// Ensure MemoryStore implements the Store interface.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. The clock resolves ServerTimestamp
// sentinels; nil means the real clock.
func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		docs:  make(map[string]*memoryDoc),
		clock: clock,
		hub:   NewHub(),
	}
}

func (s *MemoryStore) Hub() *Hub { return s.hub }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateOrMerge(ctx context.Context, ref DocumentRef, fields Fields) (DocumentRef, error) {
	if err := ref.Validate(); err != nil {
		return DocumentRef{}, err
	}
	if err := ctx.Err(); err != nil {
		return DocumentRef{}, err
	}

	s.mu.Lock()
	now := s.clock.Now()
	kind := ChangeUpdated
	doc, exists := s.docs[ref.Path()]
	if !exists {
		s.seq++
		doc = &memoryDoc{ref: ref, fields: Fields{}, created: now, seq: s.seq}
		s.docs[ref.Path()] = doc
		kind = ChangeCreated
	}
	doc.fields = mergeFields(doc.fields, fields, now)
	doc.updated = now
	s.mu.Unlock()

	s.hub.Publish(newChange(ref, kind, now))
	return ref, nil
}

func (s *MemoryStore) Add(ctx context.Context, col CollectionRef, fields Fields) (DocumentRef, error) {
	return s.CreateOrMerge(ctx, col.Doc(newDocumentID()), fields)
}

func (s *MemoryStore) Update(ctx context.Context, ref DocumentRef, fields Fields, preconds ...Precondition) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	doc, exists := s.docs[ref.Path()]
	if !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	if err := checkPreconditions(doc.fields, preconds); err != nil {
		s.mu.Unlock()
		return err
	}
	now := s.clock.Now()
	doc.fields = mergeFields(doc.fields, fields, now)
	doc.updated = now
	s.mu.Unlock()

	s.hub.Publish(newChange(ref, ChangeUpdated, now))
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, ref DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.docs[ref.Path()]; !exists {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.docs, ref.Path())
	now := s.clock.Now()
	s.mu.Unlock()

	s.hub.Publish(newChange(ref, ChangeDeleted, now))
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ref DocumentRef) (*Snapshot, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, exists := s.docs[ref.Path()]
	if !exists {
		return nil, ErrNotFound
	}
	snap := doc.snapshot()
	return &snap, nil
}

func (s *MemoryStore) List(ctx context.Context, col CollectionRef) ([]Snapshot, error) {
	if err := col.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	docs := make([]*memoryDoc, 0)
	for _, doc := range s.docs {
		if doc.ref.Collection().Path() == col.Path() {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq < docs[j].seq })

	out := make([]Snapshot, len(docs))
	for i, doc := range docs {
		out[i] = doc.snapshot()
	}
	s.mu.RUnlock()

	return out, nil
}

func (s *MemoryStore) SubscribeCollection(ctx context.Context, col CollectionRef) (*Subscription[[]Snapshot], error) {
	return subscribeCollection(ctx, s, col)
}

func (s *MemoryStore) SubscribeDocument(ctx context.Context, ref DocumentRef) (*Subscription[*Snapshot], error) {
	return subscribeDocument(ctx, s, ref)
}
