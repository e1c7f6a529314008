package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func testCalendar(t *testing.T, handler http.Handler) *Calendar {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := calendar.NewService(context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(server.URL))
	require.NoError(t, err)

	return NewCalendar(svc, "primary")
}

func TestAddEvent(t *testing.T) {
	var received calendar.Event
	cal := testCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprint(w, `{"id":"created-event"}`)
	}))

	id, err := cal.AddEvent(context.Background(), "Morning Run", "Run: 5 mi", "Europe/London",
		"2024-06-05T07:00:00Z", "2024-06-05T07:40:00Z")
	require.NoError(t, err)
	assert.Equal(t, "created-event", id)

	assert.Equal(t, "Morning Run", received.Summary)
	assert.Equal(t, "2024-06-05T07:00:00Z", received.Start.DateTime)
	assert.Equal(t, "Europe/London", received.Start.TimeZone)
	assert.Empty(t, received.Start.Date)
}

func TestAddAllDayEvent(t *testing.T) {
	var received calendar.Event
	cal := testCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		fmt.Fprint(w, `{"id":"summary-event"}`)
	}))

	id, err := cal.AddAllDayEvent(context.Background(), "Weekly Run Summary", "2 activities", "UTC", "2024-06-09")
	require.NoError(t, err)
	assert.Equal(t, "summary-event", id)

	assert.Equal(t, "2024-06-09", received.Start.Date)
	assert.Equal(t, "2024-06-09", received.End.Date)
	assert.Empty(t, received.Start.DateTime)
}

func TestUpdateEvent(t *testing.T) {
	cal := testCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		assert.Contains(t, r.URL.Path, "existing-event")
		fmt.Fprint(w, `{"id":"existing-event"}`)
	}))

	id, err := cal.UpdateEvent(context.Background(), "existing-event", "Renamed", "", "UTC",
		"2024-06-05T07:00:00Z", "2024-06-05T07:40:00Z")
	require.NoError(t, err)
	assert.Equal(t, "existing-event", id)
}

func TestDeleteEvent(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		deleted := false
		cal := testCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodDelete, r.Method)
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		}))

		require.NoError(t, cal.DeleteEvent(context.Background(), "some-event"))
		assert.True(t, deleted)
	})

	t.Run("already gone is a no-op", func(t *testing.T) {
		cal := testCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"code":404,"message":"Not Found"}}`)
		}))

		assert.NoError(t, cal.DeleteEvent(context.Background(), "gone-event"))
	})

	t.Run("other failures propagate", func(t *testing.T) {
		cal := testCalendar(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":500,"message":"Backend Error"}}`)
		}))

		assert.Error(t, cal.DeleteEvent(context.Background(), "some-event"))
	})
}

func TestNewCalendarDefaultsToPrimary(t *testing.T) {
	cal := NewCalendar(nil, "")
	assert.Equal(t, "primary", cal.calendarID)
}
