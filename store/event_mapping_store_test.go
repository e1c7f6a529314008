package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMappingStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mappings := NewEventMappingStore(testRedis(t))

	mapping := &EventMapping{
		ActivityID:          100,
		CalendarEventID:     "cal-1",
		TitleTemplate:       "{name}",
		DescriptionTemplate: "{type}",
	}
	require.NoError(t, mappings.Upsert(ctx, 42, mapping))
	assert.False(t, mapping.CreatedAt.IsZero())

	got, err := mappings.Get(ctx, 42, 100)
	require.NoError(t, err)
	assert.Equal(t, "cal-1", got.CalendarEventID)
	assert.Equal(t, "{name}", got.TitleTemplate)
}

func TestEventMappingStore_Missing(t *testing.T) {
	mappings := NewEventMappingStore(testRedis(t))

	_, err := mappings.Get(context.Background(), 42, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventMappingStore_UpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	mappings := NewEventMappingStore(testRedis(t))

	mapping := &EventMapping{ActivityID: 100, CalendarEventID: "cal-1"}
	require.NoError(t, mappings.Upsert(ctx, 42, mapping))
	created := mapping.CreatedAt

	mapping.CalendarEventID = "cal-1-renamed"
	require.NoError(t, mappings.Upsert(ctx, 42, mapping))

	got, err := mappings.Get(ctx, 42, 100)
	require.NoError(t, err)
	assert.Equal(t, "cal-1-renamed", got.CalendarEventID)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestEventMappingStore_Delete(t *testing.T) {
	ctx := context.Background()
	mappings := NewEventMappingStore(testRedis(t))

	require.NoError(t, mappings.Upsert(ctx, 42, &EventMapping{ActivityID: 100, CalendarEventID: "cal-1"}))
	require.NoError(t, mappings.Delete(ctx, 42, 100))

	_, err := mappings.Get(ctx, 42, 100)
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent mapping is a no-op.
	assert.NoError(t, mappings.Delete(ctx, 42, 100))
}
