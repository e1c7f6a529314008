package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestUserStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(testRedis(t))

	user := &User{
		AthleteID:  42,
		CalendarID: "primary",
		Timezone:   "America/Los_Angeles",
		Strava: StravaCredentials{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).UTC(),
		},
		Preferences: CalendarPreferences{
			WeeklySummaryEnabled: true,
			EndOfWeek:            EndOfWeekSunday,
			TitleTemplate:        "{name}",
		},
	}
	require.NoError(t, users.Update(ctx, user))
	assert.False(t, user.CreatedAt.IsZero())
	assert.False(t, user.UpdatedAt.IsZero())

	got, err := users.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.AthleteID)
	assert.Equal(t, "refresh", got.Strava.RefreshToken)
	assert.Equal(t, EndOfWeekSunday, got.Preferences.EndOfWeek)
	assert.True(t, got.Preferences.WeeklySummaryEnabled)
}

func TestUserStore_GetMissing(t *testing.T) {
	users := NewUserStore(testRedis(t))

	_, err := users.Get(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStore_Delete(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(testRedis(t))

	require.NoError(t, users.Update(ctx, &User{AthleteID: 42}))
	require.NoError(t, users.Delete(ctx, 42))

	_, err := users.Get(ctx, 42)
	assert.ErrorIs(t, err, ErrUserNotFound)

	// Deleting again is not an error.
	assert.NoError(t, users.Delete(ctx, 42))
}

func TestUserStore_ListAthleteIDs(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(testRedis(t))

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, users.Update(ctx, &User{AthleteID: id}))
	}

	ids, err := users.ListAthleteIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2, 3}, ids)
}

func TestUser_Location(t *testing.T) {
	assert.Equal(t, time.UTC, (&User{}).Location())
	assert.Equal(t, time.UTC, (&User{Timezone: "Not/AZone"}).Location())

	la := &User{Timezone: "America/Los_Angeles"}
	assert.Equal(t, "America/Los_Angeles", la.Location().String())
}

func TestParseEndOfWeek(t *testing.T) {
	assert.Equal(t, EndOfWeekMonday, ParseEndOfWeek("Monday"))
	assert.Equal(t, EndOfWeekFriday, ParseEndOfWeek(" friday "))
	assert.Equal(t, EndOfWeekSunday, ParseEndOfWeek(""))
	assert.Equal(t, EndOfWeekSunday, ParseEndOfWeek("someday"))

	assert.Equal(t, time.Wednesday, EndOfWeekWednesday.Weekday())
	assert.Equal(t, time.Sunday, EndOfWeek("bogus").Weekday())
}
