// Package gcal wraps the Google Calendar API behind the small surface the
// relay needs: timed events for individual activities and all-day events for
// summaries.
package gcal

import (
	"context"
	"fmt"
	"log"
	"net/http"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// Calendar performs event operations against one user's calendar.
type Calendar struct {
	svc        *calendar.Service
	calendarID string
}

// NewCalendar binds an authenticated Calendar service to a calendar id.
// An empty id targets the primary calendar.
func NewCalendar(svc *calendar.Service, calendarID string) *Calendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Calendar{svc: svc, calendarID: calendarID}
}

// AddEvent creates a timed event and returns its id.
func (c *Calendar) AddEvent(ctx context.Context, title, description, timezone, startISO, endISO string) (string, error) {
	event := &calendar.Event{
		Summary:     title,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: startISO, TimeZone: timezone},
		End:         &calendar.EventDateTime{DateTime: endISO, TimeZone: timezone},
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}
	return created.Id, nil
}

// UpdateEvent replaces the title, description and times of an existing event.
func (c *Calendar) UpdateEvent(ctx context.Context, eventID, title, description, timezone, startISO, endISO string) (string, error) {
	event := &calendar.Event{
		Summary:     title,
		Description: description,
		Start:       &calendar.EventDateTime{DateTime: startISO, TimeZone: timezone},
		End:         &calendar.EventDateTime{DateTime: endISO, TimeZone: timezone},
	}

	updated, err := c.svc.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update calendar event %s: %w", eventID, err)
	}
	return updated.Id, nil
}

// DeleteEvent removes an event. A 404/410 from the API is treated as already
// deleted rather than an error.
func (c *Calendar) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok &&
			(apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			log.Printf("Calendar event %s already gone, skipping delete", eventID)
			return nil
		}
		return fmt.Errorf("failed to delete calendar event %s: %w", eventID, err)
	}
	return nil
}

// AddAllDayEvent creates an all-day event on the given local date ("2006-01-02").
func (c *Calendar) AddAllDayEvent(ctx context.Context, title, description, timezone, date string) (string, error) {
	event := &calendar.Event{
		Summary:     title,
		Description: description,
		Start:       &calendar.EventDateTime{Date: date, TimeZone: timezone},
		End:         &calendar.EventDateTime{Date: date, TimeZone: timezone},
	}

	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert all-day event: %w", err)
	}
	return created.Id, nil
}

// UpdateAllDayEvent replaces the content of an existing all-day event.
func (c *Calendar) UpdateAllDayEvent(ctx context.Context, eventID, title, description, timezone, date string) (string, error) {
	event := &calendar.Event{
		Summary:     title,
		Description: description,
		Start:       &calendar.EventDateTime{Date: date, TimeZone: timezone},
		End:         &calendar.EventDateTime{Date: date, TimeZone: timezone},
	}

	updated, err := c.svc.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to update all-day event %s: %w", eventID, err)
	}
	return updated.Id, nil
}
