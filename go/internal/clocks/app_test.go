package clocks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/roomclocks/go/internal/docstore"
	"github.com/mcdev12/roomclocks/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoomID = "room-1"

type testEnv struct {
	store *docstore.MemoryStore
	clock *clockwork.FakeClock
	app   *App
}

func newTestEnv(t *testing.T, guard bool) *testEnv {
	t.Helper()
	fake := clockwork.NewFakeClockAt(t0)
	store := docstore.NewMemoryStore(fake)
	_, err := store.CreateOrMerge(context.Background(), roomRef(testRoomID), docstore.Fields{"name": "Standup"})
	require.NoError(t, err)

	return &testEnv{
		store: store,
		clock: fake,
		app:   NewApp(NewRepository(store), NewAccounting(fake, guard), DefaultConfig()),
	}
}

func (e *testEnv) newClock(t *testing.T) *models.Clock {
	t.Helper()
	c, err := e.app.CreateClock(context.Background(), testRoomID, CreateClockRequest{})
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestApp_CreateClockDefaults(t *testing.T) {
	env := newTestEnv(t, false)
	c := env.newClock(t)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, testRoomID, c.RoomID)
	assert.Equal(t, "rooms/room-1/clocks/"+c.ID, c.Ref)
	assert.Equal(t, "New clock", c.Name)
	assert.False(t, c.Running)
	assert.Equal(t, t0, c.StartAt)
	assert.Equal(t, float64(0), c.SecondsPassed)
	assert.Equal(t, 0, c.NumResets)
	assert.Equal(t, 5, c.TotalSeconds)
}

func TestApp_CreateClockOverrides(t *testing.T) {
	env := newTestEnv(t, false)
	c, err := env.app.CreateClock(context.Background(), testRoomID, CreateClockRequest{
		Name:         strPtr("Keynote"),
		TotalSeconds: intPtr(300),
	})
	require.NoError(t, err)

	assert.Equal(t, "Keynote", c.Name)
	assert.Equal(t, 300, c.TotalSeconds)
}

func TestApp_CreateClockErrors(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	_, err := env.app.CreateClock(ctx, "missing-room", CreateClockRequest{})
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	_, err = env.app.CreateClock(ctx, testRoomID, CreateClockRequest{Name: strPtr("  ")})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.app.CreateClock(ctx, testRoomID, CreateClockRequest{TotalSeconds: intPtr(-1)})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.app.CreateClock(ctx, "bad/id", CreateClockRequest{})
	assert.ErrorIs(t, err, docstore.ErrInvalidPath)
}

func TestApp_StartStopRoundTrip(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c := env.newClock(t)
	require.NoError(t, env.store.Update(ctx, clockRef(testRoomID, c.ID), docstore.Fields{fieldSecondsPassed: 10}))

	started, err := env.app.StartClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)
	assert.True(t, started.Running)

	env.clock.Advance(5 * time.Second)
	stopped, err := env.app.StopClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)

	assert.False(t, stopped.Running)
	assert.InDelta(t, 15, stopped.SecondsPassed, 1e-6)
}

func TestApp_ResetCounters(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c := env.newClock(t)
	require.NoError(t, env.store.Update(ctx, clockRef(testRoomID, c.ID), docstore.Fields{
		fieldSecondsPassed: 42,
		fieldNumResets:     3,
		fieldRunning:       true,
	}))

	reset, err := env.app.ResetClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)

	assert.False(t, reset.Running)
	assert.Equal(t, float64(0), reset.SecondsPassed)
	assert.Equal(t, 4, reset.NumResets)
}

func TestApp_ThreeResets(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c := env.newClock(t)

	for i := 1; i <= 3; i++ {
		got, err := env.app.ResetClock(ctx, testRoomID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, float64(0), got.SecondsPassed)
		assert.Equal(t, i, got.NumResets)
	}
}

func TestApp_LiveElapsedMatchesStoredStop(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c := env.newClock(t)

	_, err := env.app.StartClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)
	env.clock.Advance(8 * time.Second)

	running, err := env.app.GetClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)
	live := Elapsed(*running, env.clock.Now())

	stopped, err := env.app.StopClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)
	assert.InDelta(t, live, stopped.SecondsPassed, 1e-6)
}

func TestApp_TotalSecondsInvariance(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c, err := env.app.CreateClock(ctx, testRoomID, CreateClockRequest{TotalSeconds: intPtr(300)})
	require.NoError(t, err)

	steps := []func(context.Context, string, string) (*models.Clock, error){
		env.app.StartClock, env.app.StopClock, env.app.ResetClock,
		env.app.StartClock, env.app.ResetClock, env.app.StopClock,
	}
	for _, step := range steps {
		env.clock.Advance(time.Second)
		got, err := step(ctx, testRoomID, c.ID)
		require.NoError(t, err)
		assert.Equal(t, 300, got.TotalSeconds)
	}
}

func TestApp_RemovalFinality(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c := env.newClock(t)

	require.NoError(t, env.app.RemoveClock(ctx, testRoomID, c.ID))

	_, err := env.app.GetClock(ctx, testRoomID, c.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	_, err = env.app.StartClock(ctx, testRoomID, c.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, env.app.RemoveClock(ctx, testRoomID, c.ID), docstore.ErrNotFound)

	clocks, err := env.app.ListClocks(ctx, testRoomID)
	require.NoError(t, err)
	assert.Empty(t, clocks)
}

func TestApp_GuardedConcurrentStopsCountOnce(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	c := env.newClock(t)

	_, err := env.app.StartClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)
	env.clock.Advance(10 * time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.app.StopClock(ctx, testRoomID, c.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := env.app.GetClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)
	assert.False(t, got.Running)
	assert.InDelta(t, 10, got.SecondsPassed, 1e-6)
}

func TestApp_GuardedDoubleStartKeepsAnchor(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	c := env.newClock(t)

	first, err := env.app.StartClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)
	env.clock.Advance(3 * time.Second)
	second, err := env.app.StartClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)

	assert.Equal(t, first.StartAt, second.StartAt)
}

func TestApp_UpdateClock(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c := env.newClock(t)

	got, err := env.app.UpdateClock(ctx, testRoomID, c.ID, UpdateClockRequest{Name: strPtr("Q&A"), TotalSeconds: intPtr(120)})
	require.NoError(t, err)
	assert.Equal(t, "Q&A", got.Name)
	assert.Equal(t, 120, got.TotalSeconds)

	_, err = env.app.UpdateClock(ctx, testRoomID, c.ID, UpdateClockRequest{Name: strPtr("")})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = env.app.UpdateClock(ctx, testRoomID, "nope", UpdateClockRequest{Name: strPtr("x")})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestApp_TransitionByName(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	c := env.newClock(t)

	got, err := env.app.Transition(ctx, testRoomID, c.ID, TransitionStart)
	require.NoError(t, err)
	assert.True(t, got.Running)

	_, err = env.app.Transition(ctx, testRoomID, c.ID, Transition("pause"))
	assert.ErrorIs(t, err, models.ErrValidation)

	got, err = env.app.Transition(ctx, testRoomID, c.ID, TransitionRemove)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestApp_WatchClocks(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	sub, err := env.app.WatchClocks(ctx, testRoomID)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	next := func(pred func([]models.Clock) bool) []models.Clock {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			select {
			case v, ok := <-sub.Updates():
				require.True(t, ok)
				if pred(v) {
					return v
				}
			case <-deadline:
				t.Fatal("timed out waiting for clocks")
				return nil
			}
		}
	}

	assert.Empty(t, next(func([]models.Clock) bool { return true }))

	c := env.newClock(t)
	_, err = env.app.StartClock(ctx, testRoomID, c.ID)
	require.NoError(t, err)

	got := next(func(v []models.Clock) bool { return len(v) == 1 && v[0].Running })
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, testRoomID, got[0].RoomID)
}
