package audit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBus(t *testing.T) *Bus {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewBus(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestStreamKey(t *testing.T) {
	assert.Equal(t, "athlete:42:audit", StreamKey(42))
}

func TestRecordAndTail(t *testing.T) {
	ctx := context.Background()
	bus := testBus(t)

	id, err := bus.Record(ctx, 42, "d-1", map[string]any{
		"kind":   "activity_create",
		"action": "created",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, nextID, err := bus.Tail(ctx, 42, "0")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entry := entries[0]
	assert.Equal(t, id, entry.ID)
	assert.Equal(t, id, nextID)
	assert.Equal(t, int64(42), entry.AthleteID)
	assert.Equal(t, "d-1", entry.DeliveryID)
	assert.Equal(t, "created", entry.Values["action"])
	assert.Contains(t, entry.Values, "ts")
}

func TestTailResumesAfterID(t *testing.T) {
	ctx := context.Background()
	bus := testBus(t)

	first, err := bus.Record(ctx, 42, "d-1", map[string]any{"action": "created"})
	require.NoError(t, err)
	second, err := bus.Record(ctx, 42, "d-2", map[string]any{"action": "updated"})
	require.NoError(t, err)

	entries, nextID, err := bus.Tail(ctx, 42, first)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, second, entries[0].ID)
	assert.Equal(t, second, nextID)
}

func TestRecordScopedPerAthlete(t *testing.T) {
	ctx := context.Background()
	bus := testBus(t)

	_, err := bus.Record(ctx, 42, "d-1", map[string]any{"action": "created"})
	require.NoError(t, err)

	entries, _, err := bus.Tail(ctx, 43, "0")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNilBus(t *testing.T) {
	var bus *Bus

	_, err := bus.Record(context.Background(), 42, "d-1", nil)
	assert.Error(t, err)

	_, _, err = bus.Tail(context.Background(), 42, "0")
	assert.Error(t, err)
}

func TestAthleteIDFromStream(t *testing.T) {
	assert.Equal(t, int64(42), athleteIDFromStream("athlete:42:audit"))
	assert.Equal(t, int64(0), athleteIDFromStream("bogus"))
	assert.Equal(t, int64(0), athleteIDFromStream("athlete:abc:audit"))
}
