package templates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/strava"
)

func sampleActivity() *strava.Activity {
	return &strava.Activity{
		ID:             100,
		Name:           "Morning Run",
		Type:           "Run",
		DistanceMeters: 8046.72, // 5 miles
		ElapsedTimeSec: 2400,
		StartDateLocal: time.Date(2024, 6, 5, 7, 30, 0, 0, time.UTC),
	}
}

func TestFillTemplate(t *testing.T) {
	r := NewRenderer()

	t.Run("custom template", func(t *testing.T) {
		got, usedDefault := r.FillTemplate("{name} ({distance_miles} mi)", DefaultTitle, sampleActivity())
		assert.Equal(t, "Morning Run (5 mi)", got)
		assert.False(t, usedDefault)
	})

	t.Run("empty template falls back", func(t *testing.T) {
		got, usedDefault := r.FillTemplate("", DefaultTitle, sampleActivity())
		assert.Equal(t, "Morning Run", got)
		assert.True(t, usedDefault)
	})

	t.Run("whitespace template falls back", func(t *testing.T) {
		got, usedDefault := r.FillTemplate("   ", DefaultDescription, sampleActivity())
		assert.Equal(t, "Run: 5 mi in 40:00", got)
		assert.True(t, usedDefault)
	})

	t.Run("sport type preferred over type", func(t *testing.T) {
		activity := sampleActivity()
		activity.SportType = "TrailRun"
		got, _ := r.FillTemplate("{type}", "", activity)
		assert.Equal(t, "TrailRun", got)
	})

	t.Run("all placeholders", func(t *testing.T) {
		got, _ := r.FillTemplate("{name}|{type}|{distance_miles}|{distance_km}|{duration}|{start_time}", "", sampleActivity())
		assert.Equal(t, "Morning Run|Run|5|8.05|40:00|7:30 AM", got)
	})

	t.Run("unknown placeholders pass through", func(t *testing.T) {
		got, _ := r.FillTemplate("{name} {nope}", "", sampleActivity())
		assert.Equal(t, "Morning Run {nope}", got)
	})
}

func TestFillSummaryTemplate(t *testing.T) {
	r := NewRenderer()
	activities := []*strava.Activity{sampleActivity(), sampleActivity()}

	t.Run("custom template", func(t *testing.T) {
		got, usedDefault := r.FillSummaryTemplate("{count} runs, {total_distance_km} km", DefaultSummaryDescription, activities)
		assert.Equal(t, "2 runs, 16.09 km", got)
		assert.False(t, usedDefault)
	})

	t.Run("empty template falls back", func(t *testing.T) {
		got, usedDefault := r.FillSummaryTemplate("", DefaultSummaryDescription, activities)
		assert.Equal(t, "2 activities, 10 mi in 1:20:00", got)
		assert.True(t, usedDefault)
	})

	t.Run("no activities", func(t *testing.T) {
		got, _ := r.FillSummaryTemplate("{count} activities, {total_duration}", "", nil)
		assert.Equal(t, "0 activities, 0:00", got)
	})
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0:30", formatDuration(30*time.Second))
	assert.Equal(t, "40:00", formatDuration(40*time.Minute))
	assert.Equal(t, "1:05:09", formatDuration(time.Hour+5*time.Minute+9*time.Second))
}
