package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeFields_MergesAndResolvesSentinels(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	current := Fields{"name": "old", "count": float64(2), "keep": true}

	out := mergeFields(current, Fields{
		"name":       "new",
		"count":      Increment(3),
		"missing":    Increment(1.5),
		"stamped_at": ServerTimestamp(),
		"total":      300,
	}, now)

	assert.Equal(t, "new", out["name"])
	assert.Equal(t, float64(5), out["count"])
	assert.Equal(t, 1.5, out["missing"])
	assert.Equal(t, now, out["stamped_at"])
	assert.Equal(t, float64(300), out["total"])
	assert.Equal(t, true, out["keep"])

	// input untouched
	assert.Equal(t, "old", current["name"])
	assert.Equal(t, float64(2), current["count"])
}

func TestMergeFields_IncrementOnNonNumericStartsFromZero(t *testing.T) {
	out := mergeFields(Fields{"n": "text"}, Fields{"n": Increment(2)}, time.Now())
	assert.Equal(t, float64(2), out["n"])
}

func TestCheckPreconditions(t *testing.T) {
	fields := Fields{"running": true, "count": float64(4)}

	require.NoError(t, checkPreconditions(fields, nil))
	require.NoError(t, checkPreconditions(fields, []Precondition{FieldEquals("running", true)}))
	require.NoError(t, checkPreconditions(fields, []Precondition{FieldEquals("count", 4)}))

	err := checkPreconditions(fields, []Precondition{FieldEquals("running", false)})
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	err = checkPreconditions(fields, []Precondition{FieldEquals("absent", true)})
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestEncodeDecodeFields_TimesBecomeStrings(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)
	data, err := encodeFields(Fields{"at": at, "n": float64(7), "ok": true})
	require.NoError(t, err)

	decoded, err := decodeFields(data)
	require.NoError(t, err)

	snap := Snapshot{Fields: decoded}
	assert.True(t, at.Equal(snap.Time("at")))
	assert.Equal(t, int64(7), snap.Int("n"))
	assert.True(t, snap.Bool("ok"))
}

func TestSnapshotAccessors_MissingFieldsAreZero(t *testing.T) {
	snap := Snapshot{Fields: Fields{"name": 12}}

	assert.Equal(t, "", snap.String("name"))
	assert.Equal(t, "", snap.String("nope"))
	assert.False(t, snap.Bool("nope"))
	assert.Equal(t, float64(0), snap.Float("nope"))
	assert.True(t, snap.Time("nope").IsZero())
	assert.True(t, Snapshot{Fields: Fields{"at": "not a time"}}.Time("at").IsZero())
}

func TestPaths(t *testing.T) {
	rooms := Collection("rooms")
	room := rooms.Doc("r1")
	clocks := room.Sub("clocks")
	clock := clocks.Doc("c1")

	assert.Equal(t, "rooms/r1", room.Path())
	assert.Equal(t, "rooms/r1/clocks", clocks.Path())
	assert.Equal(t, "rooms/r1/clocks/c1", clock.Path())
	assert.Equal(t, "c1", clock.ID())
	assert.Equal(t, clocks, clock.Collection())

	parent, ok := clocks.Parent()
	require.True(t, ok)
	assert.Equal(t, room, parent)

	_, ok = rooms.Parent()
	assert.False(t, ok)

	parsed, err := ParseDocumentPath("rooms/r1/clocks/c1")
	require.NoError(t, err)
	assert.Equal(t, clock, parsed)
}

func TestPaths_Validation(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "empty id", err: Collection("rooms").Doc("").Validate()},
		{name: "slash in id", err: Collection("rooms").Doc("a/b").Validate()},
		{name: "empty segment", err: Collection("rooms", "", "clocks").Validate()},
		{name: "even collection", err: Collection("rooms", "r1").Validate()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, ErrInvalidPath)
		})
	}

	_, err := ParseDocumentPath("rooms")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = ParseDocumentPath("rooms/r1/clocks")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
