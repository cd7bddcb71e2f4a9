package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const updateTimeout = 3 * time.Second

// recvUntil reads subscription values until pred accepts one.
func recvUntil[T any](t *testing.T, sub *Subscription[T], pred func(T) bool) T {
	t.Helper()
	deadline := time.After(updateTimeout)
	for {
		select {
		case v, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed unexpectedly")
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for subscription update")
		}
	}
}

// runStoreSuite checks the Store contract against one adapter.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create merge and get", func(t *testing.T) {
		s := newStore(t)
		ref := Collection("rooms").Doc("r1")

		_, err := s.CreateOrMerge(ctx, ref, Fields{"name": "first", "n": 1})
		require.NoError(t, err)
		_, err = s.CreateOrMerge(ctx, ref, Fields{"extra": true})
		require.NoError(t, err)

		snap, err := s.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, "r1", snap.ID())
		assert.Equal(t, ref, snap.Ref)
		assert.Equal(t, "first", snap.String("name"))
		assert.Equal(t, int64(1), snap.Int("n"))
		assert.True(t, snap.Bool("extra"))
		assert.False(t, snap.CreateTime.IsZero())
	})

	t.Run("add assigns ids and list keeps creation order", func(t *testing.T) {
		s := newStore(t)
		col := Collection("rooms", "r1", "clocks")

		a, err := s.Add(ctx, col, Fields{"name": "a"})
		require.NoError(t, err)
		b, err := s.Add(ctx, col, Fields{"name": "b"})
		require.NoError(t, err)
		_, err = s.Add(ctx, Collection("rooms", "r2", "clocks"), Fields{"name": "other"})
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID())
		assert.NotEqual(t, a.ID(), b.ID())

		snaps, err := s.List(ctx, col)
		require.NoError(t, err)
		require.Len(t, snaps, 2)
		assert.Equal(t, "a", snaps[0].String("name"))
		assert.Equal(t, "b", snaps[1].String("name"))
	})

	t.Run("update applies increments and server timestamps", func(t *testing.T) {
		s := newStore(t)
		ref := Collection("rooms").Doc("r1")
		_, err := s.CreateOrMerge(ctx, ref, Fields{"count": 1, "total": 300})
		require.NoError(t, err)

		require.NoError(t, s.Update(ctx, ref, Fields{"count": Increment(2), "at": ServerTimestamp()}))
		require.NoError(t, s.Update(ctx, ref, Fields{"count": Increment(0.5)}))

		snap, err := s.Get(ctx, ref)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, snap.Float("count"), 1e-9)
		assert.Equal(t, int64(300), snap.Int("total"))
		assert.False(t, snap.Time("at").IsZero())
	})

	t.Run("update missing document", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, Collection("rooms").Doc("nope"), Fields{"a": 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update preconditions", func(t *testing.T) {
		s := newStore(t)
		ref := Collection("rooms").Doc("r1")
		_, err := s.CreateOrMerge(ctx, ref, Fields{"running": true, "n": 0})
		require.NoError(t, err)

		err = s.Update(ctx, ref, Fields{"n": Increment(1)}, FieldEquals("running", false))
		assert.ErrorIs(t, err, ErrPreconditionFailed)

		require.NoError(t, s.Update(ctx, ref, Fields{"n": Increment(1), "running": false}, FieldEquals("running", true)))

		snap, err := s.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.Int("n"))
		assert.False(t, snap.Bool("running"))
	})

	t.Run("delete is final", func(t *testing.T) {
		s := newStore(t)
		col := Collection("rooms")
		ref, err := s.Add(ctx, col, Fields{"name": "gone"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, ref))

		_, err = s.Get(ctx, ref)
		assert.ErrorIs(t, err, ErrNotFound)
		snaps, err := s.List(ctx, col)
		require.NoError(t, err)
		assert.Empty(t, snaps)

		assert.ErrorIs(t, s.Delete(ctx, ref), ErrNotFound)
	})

	t.Run("invalid paths are rejected", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, Collection("rooms").Doc(""))
		assert.ErrorIs(t, err, ErrInvalidPath)
		_, err = s.List(ctx, Collection("rooms", "r1"))
		assert.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("collection subscription", func(t *testing.T) {
		s := newStore(t)
		col := Collection("rooms", "r1", "clocks")

		sub, err := s.SubscribeCollection(ctx, col)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		initial := recvUntil(t, sub, func([]Snapshot) bool { return true })
		assert.Empty(t, initial)

		ref, err := s.Add(ctx, col, Fields{"name": "a"})
		require.NoError(t, err)
		recvUntil(t, sub, func(v []Snapshot) bool { return len(v) == 1 })

		require.NoError(t, s.Update(ctx, ref, Fields{"name": "b"}))
		recvUntil(t, sub, func(v []Snapshot) bool { return len(v) == 1 && v[0].String("name") == "b" })

		require.NoError(t, s.Delete(ctx, ref))
		recvUntil(t, sub, func(v []Snapshot) bool { return len(v) == 0 })
	})

	t.Run("document subscription reports removal as nil", func(t *testing.T) {
		s := newStore(t)
		ref := Collection("rooms").Doc("r1")
		_, err := s.CreateOrMerge(ctx, ref, Fields{"name": "x"})
		require.NoError(t, err)

		sub, err := s.SubscribeDocument(ctx, ref)
		require.NoError(t, err)
		defer sub.Unsubscribe()

		first := recvUntil(t, sub, func(*Snapshot) bool { return true })
		require.NotNil(t, first)
		assert.Equal(t, "x", first.String("name"))

		require.NoError(t, s.Delete(ctx, ref))
		recvUntil(t, sub, func(v *Snapshot) bool { return v == nil })
	})

	t.Run("unsubscribe closes updates", func(t *testing.T) {
		s := newStore(t)
		sub, err := s.SubscribeCollection(ctx, Collection("rooms"))
		require.NoError(t, err)
		recvUntil(t, sub, func([]Snapshot) bool { return true })

		sub.Unsubscribe()
		sub.Unsubscribe()

		select {
		case _, ok := <-sub.Updates():
			assert.False(t, ok)
		case <-time.After(updateTimeout):
			t.Fatal("updates channel not closed")
		}
	})
}
