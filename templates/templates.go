// Package templates renders calendar event titles and descriptions from
// user-configured placeholder templates.
//
// Activity placeholders: {name} {type} {distance_miles} {distance_km}
// {duration} {start_time}. Summary placeholders: {count} {total_distance_miles}
// {total_distance_km} {total_duration}.
package templates

import (
	"fmt"
	"strings"
	"time"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/strava"
)

// Defaults applied when a user template is empty. Callers pass the matching
// default explicitly so the fallback branch stays observable.
const (
	DefaultTitle       = "{name}"
	DefaultDescription = "{type}: {distance_miles} mi in {duration}"

	DefaultSummaryTitle       = "Weekly Run Summary"
	DefaultSummaryDescription = "{count} activities, {total_distance_miles} mi in {total_duration}"

	metersPerMile = 1609.344
)

// Renderer fills templates with activity data.
type Renderer struct{}

// NewRenderer creates a renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// FillTemplate renders a per-activity template. An empty template falls back
// to the supplied default; the second return reports whether the fallback was
// used so callers can log it.
func (r *Renderer) FillTemplate(template, fallback string, activity *strava.Activity) (string, bool) {
	usedDefault := false
	if strings.TrimSpace(template) == "" {
		template = fallback
		usedDefault = true
	}

	replacer := strings.NewReplacer(
		"{name}", activity.Name,
		"{type}", activityType(activity),
		"{distance_miles}", formatMiles(activity.DistanceMeters),
		"{distance_km}", formatKilometers(activity.DistanceMeters),
		"{duration}", formatDuration(activity.Duration()),
		"{start_time}", activity.StartDateLocal.Format("3:04 PM"),
	)
	return replacer.Replace(template), usedDefault
}

// FillSummaryTemplate renders a summary template over a list of activities,
// falling back to the supplied default when the template is empty.
func (r *Renderer) FillSummaryTemplate(template, fallback string, activities []*strava.Activity) (string, bool) {
	usedDefault := false
	if strings.TrimSpace(template) == "" {
		template = fallback
		usedDefault = true
	}

	var totalMeters float64
	var totalDuration time.Duration
	for _, a := range activities {
		totalMeters += a.DistanceMeters
		totalDuration += a.Duration()
	}

	replacer := strings.NewReplacer(
		"{count}", fmt.Sprintf("%d", len(activities)),
		"{total_distance_miles}", formatMiles(totalMeters),
		"{total_distance_km}", formatKilometers(totalMeters),
		"{total_duration}", formatDuration(totalDuration),
	)
	return replacer.Replace(template), usedDefault
}

func activityType(activity *strava.Activity) string {
	if activity.SportType != "" {
		return activity.SportType
	}
	return activity.Type
}

func formatMiles(meters float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.2f", meters/metersPerMile), ".00")
}

func formatKilometers(meters float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.2f", meters/1000), ".00")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
