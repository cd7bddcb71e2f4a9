package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore(nil)
	})
}

func TestMemoryStore_ServerTimestampUsesInjectedClock(t *testing.T) {
	ctx := context.Background()
	fake := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	s := NewMemoryStore(fake)

	ref, err := s.Add(ctx, Collection("rooms"), Fields{"at": ServerTimestamp()})
	require.NoError(t, err)

	fake.Advance(90 * time.Second)
	require.NoError(t, s.Update(ctx, ref, Fields{"later": ServerTimestamp()}))

	snap, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), snap.Time("at"))
	assert.Equal(t, time.Date(2024, 5, 1, 12, 1, 30, 0, time.UTC), snap.Time("later"))
	assert.Equal(t, fake.Now(), snap.UpdateTime)
}

func TestMemoryStore_SnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	ref, err := s.Add(ctx, Collection("rooms"), Fields{"name": "a"})
	require.NoError(t, err)

	snap, err := s.Get(ctx, ref)
	require.NoError(t, err)
	snap.Fields["name"] = "mutated"

	again, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "a", again.String("name"))
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(nil)
	ref, err := s.Add(ctx, Collection("rooms"), Fields{"n": 0})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, ref, Fields{"n": Increment(1)}))
		}()
	}
	wg.Wait()

	snap, err := s.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(50), snap.Int("n"))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore(nil)
	_, err := s.Add(ctx, Collection("rooms"), Fields{})
	assert.ErrorIs(t, err, context.Canceled)
}
