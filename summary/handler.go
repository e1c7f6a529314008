// Package summary computes day/week summary windows and reconciles weekly and
// daily summary calendar events against previously recorded ones.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/store"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/strava"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/templates"
)

// ActivitySource fetches the user's activities inside a window.
type ActivitySource interface {
	GetActivities(ctx context.Context, after, before time.Time) ([]*strava.Activity, error)
}

// Calendar is the summary-facing slice of the calendar collaborator.
type Calendar interface {
	AddAllDayEvent(ctx context.Context, title, description, timezone, date string) (string, error)
	UpdateAllDayEvent(ctx context.Context, eventID, title, description, timezone, date string) (string, error)
}

// SummaryStore persists summary records keyed by window end date.
type SummaryStore interface {
	Get(ctx context.Context, athleteID int64, dateKey string) (*store.SummaryRecord, error)
	Upsert(ctx context.Context, athleteID int64, dateKey string, record *store.SummaryRecord) error
}

// UserStore persists the profile when the cached summary pointer advances.
type UserStore interface {
	Update(ctx context.Context, user *store.User) error
}

// Renderer fills summary templates.
type Renderer interface {
	FillSummaryTemplate(template, fallback string, activities []*strava.Activity) (string, bool)
}

// Handler reconciles summary calendar events for one user. It owns no state of
// its own; all reads and writes go through the injected collaborators.
type Handler struct {
	user       *store.User
	loc        *time.Location
	activities ActivitySource
	calendar   Calendar
	summaries  SummaryStore
	users      UserStore
	renderer   Renderer
}

// NewHandler creates a summary handler bound to a user and their local timezone.
func NewHandler(user *store.User, loc *time.Location, activities ActivitySource, calendar Calendar, summaries SummaryStore, users UserStore, renderer Renderer) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		user:       user,
		loc:        loc,
		activities: activities,
		calendar:   calendar,
		summaries:  summaries,
		users:      users,
		renderer:   renderer,
	}
}

// UpdateSummaries refreshes the daily and/or weekly summary events for the
// window containing date. date is the specific day for daily summaries, or
// any day within the week for weekly ones.
func (h *Handler) UpdateSummaries(ctx context.Context, date time.Time) error {
	daily := h.user.Preferences.DailySummaryEnabled
	weekly := h.user.Preferences.WeeklySummaryEnabled
	if !daily && !weekly {
		return nil
	}

	day := DayWindow(date)
	week := WeekWindow(date, h.user.Preferences.EndOfWeek.Weekday())

	var activities []*strava.Activity
	var err error
	if weekly {
		activities, err = h.activities.GetActivities(ctx, week.Start, week.End)
	} else {
		activities, err = h.activities.GetActivities(ctx, day.Start, day.End)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch activities for athlete %d: %w", h.user.AthleteID, err)
	}

	if weekly {
		if err := h.updateWeeklySummary(ctx, activities, week.Start, week.End); err != nil {
			return err
		}
	}
	if daily {
		if err := h.updateDailySummary(ctx, activitiesBetween(activities, day.Start, day.End), day); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) updateWeeklySummary(ctx context.Context, activities []*strava.Activity, start, end time.Time) error {
	eventID, err := h.weeklySummaryEventID(ctx, end)
	if err != nil {
		return err
	}

	prefs := h.user.Preferences
	title, titleDefault := h.renderer.FillSummaryTemplate(prefs.WeeklyTitleTemplate, templates.DefaultSummaryTitle, activities)
	description, descDefault := h.renderer.FillSummaryTemplate(prefs.WeeklyDescriptionTemplate, templates.DefaultSummaryDescription, activities)
	if titleDefault || descDefault {
		log.Printf("Using default weekly summary template(s) for athlete %d (title=%t description=%t)",
			h.user.AthleteID, titleDefault, descDefault)
	}

	eventDate := end.In(h.loc).Format("2006-01-02")

	if eventID == "" {
		eventID, err = h.calendar.AddAllDayEvent(ctx, title, description, h.loc.String(), eventDate)
		if err != nil {
			return fmt.Errorf("failed to create weekly summary event: %w", err)
		}
	} else {
		if _, err = h.calendar.UpdateAllDayEvent(ctx, eventID, title, description, h.loc.String(), eventDate); err != nil {
			return fmt.Errorf("failed to update weekly summary event %s: %w", eventID, err)
		}
	}

	return h.saveWeeklySummaryEventID(ctx, eventID, start, end)
}

// weeklySummaryEventID returns the calendar event id recorded for the week
// ending on end, or "" when the week has not been summarized yet. The cached
// pointer on the profile is checked before the summary store.
func (h *Handler) weeklySummaryEventID(ctx context.Context, end time.Time) (string, error) {
	dateKey := end.Format("2006-01-02")

	if cached := h.user.WeeklySummaryEvent; cached != nil && cached.EndDate() == dateKey {
		return cached.CalendarEventID, nil
	}

	record, err := h.summaries.Get(ctx, h.user.AthleteID, dateKey)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return record.CalendarEventID, nil
}

// saveWeeklySummaryEventID records the calendar event id for the week so a
// later delivery within the same week updates the event instead of creating a
// second one. The cached profile pointer is only advanced, never rewound.
func (h *Handler) saveWeeklySummaryEventID(ctx context.Context, eventID string, start, end time.Time) error {
	record := &store.SummaryRecord{
		CalendarEventID: eventID,
		WindowStart:     start,
		WindowEnd:       end,
	}

	cached := h.user.WeeklySummaryEvent
	if cached == nil || cached.EndDate() < record.EndDate() {
		h.user.WeeklySummaryEvent = record
		if err := h.users.Update(ctx, h.user); err != nil {
			return fmt.Errorf("failed to persist weekly summary pointer: %w", err)
		}
	}

	return h.summaries.Upsert(ctx, h.user.AthleteID, record.EndDate(), record)
}

func (h *Handler) updateDailySummary(ctx context.Context, activities []*strava.Activity, day TimeWindow) error {
	dateKey := "daily:" + day.Start.Format("2006-01-02")

	eventID := ""
	record, err := h.summaries.Get(ctx, h.user.AthleteID, dateKey)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if record != nil {
		eventID = record.CalendarEventID
	}

	prefs := h.user.Preferences
	title, titleDefault := h.renderer.FillSummaryTemplate(prefs.DailyTitleTemplate, templates.DefaultSummaryTitle, activities)
	description, descDefault := h.renderer.FillSummaryTemplate(prefs.DailyDescriptionTemplate, templates.DefaultSummaryDescription, activities)
	if titleDefault || descDefault {
		log.Printf("Using default daily summary template(s) for athlete %d (title=%t description=%t)",
			h.user.AthleteID, titleDefault, descDefault)
	}

	eventDate := day.Start.In(h.loc).Format("2006-01-02")

	if eventID == "" {
		eventID, err = h.calendar.AddAllDayEvent(ctx, title, description, h.loc.String(), eventDate)
		if err != nil {
			return fmt.Errorf("failed to create daily summary event: %w", err)
		}
	} else {
		if _, err = h.calendar.UpdateAllDayEvent(ctx, eventID, title, description, h.loc.String(), eventDate); err != nil {
			return fmt.Errorf("failed to update daily summary event %s: %w", eventID, err)
		}
	}

	return h.summaries.Upsert(ctx, h.user.AthleteID, dateKey, &store.SummaryRecord{
		CalendarEventID: eventID,
		WindowStart:     day.Start,
		WindowEnd:       day.End,
	})
}

// activitiesBetween filters activities whose local start, reinterpreted as a
// UTC instant, falls strictly inside the window.
func activitiesBetween(activities []*strava.Activity, start, end time.Time) []*strava.Activity {
	var out []*strava.Activity
	for _, a := range activities {
		at := time.Unix(a.StartDateLocal.Unix(), 0).UTC()
		if at.After(start) && at.Before(end) {
			out = append(out, a)
		}
	}
	return out
}
