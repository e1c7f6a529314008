package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/audit"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/store"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/strava"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/summary"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/templates"
)

// ActivitySource fetches activities from Strava on behalf of one user.
type ActivitySource interface {
	GetActivity(ctx context.Context, activityID int64) (*strava.Activity, error)
	GetActivities(ctx context.Context, after, before time.Time) ([]*strava.Activity, error)
}

// Calendar is the full calendar collaborator surface the processor needs.
// It is a superset of summary.Calendar so one value serves both.
type Calendar interface {
	AddEvent(ctx context.Context, title, description, timezone, startISO, endISO string) (string, error)
	UpdateEvent(ctx context.Context, eventID, title, description, timezone, startISO, endISO string) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
	AddAllDayEvent(ctx context.Context, title, description, timezone, date string) (string, error)
	UpdateAllDayEvent(ctx context.Context, eventID, title, description, timezone, date string) (string, error)
}

// Users persists user profiles.
type Users interface {
	Get(ctx context.Context, athleteID int64) (*store.User, error)
	Update(ctx context.Context, user *store.User) error
	Delete(ctx context.Context, athleteID int64) error
}

// Mappings persists activity-to-calendar-event mappings.
type Mappings interface {
	Get(ctx context.Context, athleteID, activityID int64) (*store.EventMapping, error)
	Upsert(ctx context.Context, athleteID int64, mapping *store.EventMapping) error
	Delete(ctx context.Context, athleteID, activityID int64) error
}

// Renderer fills event and summary templates.
type Renderer interface {
	FillTemplate(template, fallback string, activity *strava.Activity) (string, bool)
	FillSummaryTemplate(template, fallback string, activities []*strava.Activity) (string, bool)
}

// Collaborators builds the per-user external clients. Factories keep the
// processor testable and defer token refresh to the moment of use.
type Collaborators struct {
	NewActivitySource func(ctx context.Context, user *store.User) (ActivitySource, error)
	NewCalendar       func(ctx context.Context, user *store.User) (Calendar, error)
}

// Processor applies one decoded webhook event to the calendar and the stores.
// Deliveries for the same athlete are serialized with a keyed mutex; Strava
// and Google give no ordering guarantee, so every handler is written to be
// idempotent and order-tolerant on top of that.
type Processor struct {
	users     Users
	mappings  Mappings
	summaries summary.SummaryStore
	renderer  Renderer
	collab    Collaborators
	auditBus  *audit.Bus

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewProcessor creates a processor. auditBus may be nil.
func NewProcessor(users Users, mappings Mappings, summaries summary.SummaryStore, renderer Renderer, collab Collaborators, auditBus *audit.Bus) *Processor {
	return &Processor{
		users:     users,
		mappings:  mappings,
		summaries: summaries,
		renderer:  renderer,
		collab:    collab,
		auditBus:  auditBus,
		locks:     make(map[int64]*sync.Mutex),
	}
}

func (p *Processor) lockAthlete(athleteID int64) func() {
	p.mu.Lock()
	lock, ok := p.locks[athleteID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[athleteID] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Process handles one delivery end to end.
func (p *Processor) Process(ctx context.Context, deliveryID string, event *StravaEvent) error {
	unlock := p.lockAthlete(event.OwnerID)
	defer unlock()

	kind := event.Kind()
	log.Printf("Processing %s event %d for athlete %d (delivery %s)",
		kind, event.ObjectID, event.OwnerID, deliveryID)

	if kind == KindUnknown {
		log.Printf("Ignoring unknown event type %s/%s for athlete %d",
			event.ObjectType, event.AspectType, event.OwnerID)
		p.record(ctx, event, deliveryID, "ignored", "")
		return nil
	}

	if kind == KindAthleteDeauth {
		return p.handleDeauthorization(ctx, deliveryID, event)
	}

	user, err := p.users.Get(ctx, event.OwnerID)
	if err != nil {
		return err
	}

	var action, calendarEventID string
	switch kind {
	case KindActivityCreate:
		action, calendarEventID, err = p.handleActivityCreate(ctx, user, event.ObjectID)
	case KindActivityUpdate:
		action, calendarEventID, err = p.handleActivityUpdate(ctx, user, event.ObjectID)
	case KindActivityDelete:
		action, calendarEventID, err = p.handleActivityDelete(ctx, user, event)
	}
	if err != nil {
		p.record(ctx, event, deliveryID, "error", "")
		return err
	}

	p.record(ctx, event, deliveryID, action, calendarEventID)
	return nil
}

// handleDeauthorization removes the athlete's stored profile.
// TODO: cascade the revocation into the mapping and summary records for the
// athlete; today they are left behind as orphans.
func (p *Processor) handleDeauthorization(ctx context.Context, deliveryID string, event *StravaEvent) error {
	if err := p.users.Delete(ctx, event.OwnerID); err != nil {
		return fmt.Errorf("failed to delete de-authorized athlete %d: %w", event.OwnerID, err)
	}
	log.Printf("Deleted profile for de-authorized athlete %d", event.OwnerID)
	p.record(ctx, event, deliveryID, "deauthorized", "")
	return nil
}

func (p *Processor) handleActivityCreate(ctx context.Context, user *store.User, activityID int64) (string, string, error) {
	source, err := p.collab.NewActivitySource(ctx, user)
	if err != nil {
		return "", "", err
	}
	activity, err := source.GetActivity(ctx, activityID)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch activity %d: %w", activityID, err)
	}

	cal, err := p.collab.NewCalendar(ctx, user)
	if err != nil {
		return "", "", err
	}

	prefs := user.Preferences
	title, titleDefault := p.renderer.FillTemplate(prefs.TitleTemplate, templates.DefaultTitle, activity)
	description, descDefault := p.renderer.FillTemplate(prefs.DescriptionTemplate, templates.DefaultDescription, activity)
	if titleDefault || descDefault {
		log.Printf("Using default event template(s) for athlete %d (title=%t description=%t)",
			user.AthleteID, titleDefault, descDefault)
	}

	eventID, err := cal.AddEvent(ctx, title, description, p.eventTimezone(user, activity),
		activity.StartDateLocal.Format(time.RFC3339),
		activity.StartDateLocal.Add(activity.Duration()).Format(time.RFC3339))
	if err != nil {
		return "", "", fmt.Errorf("failed to create calendar event for activity %d: %w", activityID, err)
	}

	// A failure past this point leaves the calendar event without a mapping
	// record. There is no compensating delete yet.
	mapping := &store.EventMapping{
		ActivityID:          activityID,
		CalendarEventID:     eventID,
		TitleTemplate:       prefs.TitleTemplate,
		DescriptionTemplate: prefs.DescriptionTemplate,
	}
	if err := p.mappings.Upsert(ctx, user.AthleteID, mapping); err != nil {
		return "", "", err
	}

	if err := p.refreshSummaries(ctx, user, source, cal, activity.StartDateLocal); err != nil {
		return "", "", err
	}
	return "created", eventID, nil
}

func (p *Processor) handleActivityUpdate(ctx context.Context, user *store.User, activityID int64) (string, string, error) {
	mapping, err := p.mappings.Get(ctx, user.AthleteID, activityID)
	if errors.Is(err, store.ErrNotFound) {
		// Update for an activity never seen: fold into the create path.
		log.Printf("No mapping for updated activity %d, treating as create", activityID)
		return p.handleActivityCreate(ctx, user, activityID)
	} else if err != nil {
		return "", "", err
	}

	source, err := p.collab.NewActivitySource(ctx, user)
	if err != nil {
		return "", "", err
	}
	activity, err := source.GetActivity(ctx, activityID)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch activity %d: %w", activityID, err)
	}

	cal, err := p.collab.NewCalendar(ctx, user)
	if err != nil {
		return "", "", err
	}

	// Re-render with the create-time templates, not the current preferences.
	title, _ := p.renderer.FillTemplate(mapping.TitleTemplate, templates.DefaultTitle, activity)
	description, _ := p.renderer.FillTemplate(mapping.DescriptionTemplate, templates.DefaultDescription, activity)

	if _, err := cal.UpdateEvent(ctx, mapping.CalendarEventID, title, description, p.eventTimezone(user, activity),
		activity.StartDateLocal.Format(time.RFC3339),
		activity.StartDateLocal.Add(activity.Duration()).Format(time.RFC3339)); err != nil {
		return "", "", fmt.Errorf("failed to update calendar event %s: %w", mapping.CalendarEventID, err)
	}

	if err := p.mappings.Upsert(ctx, user.AthleteID, mapping); err != nil {
		return "", "", err
	}

	if err := p.refreshSummaries(ctx, user, source, cal, activity.StartDateLocal); err != nil {
		return "", "", err
	}
	return "updated", mapping.CalendarEventID, nil
}

func (p *Processor) handleActivityDelete(ctx context.Context, user *store.User, event *StravaEvent) (string, string, error) {
	mapping, err := p.mappings.Get(ctx, user.AthleteID, event.ObjectID)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing recorded for this activity, so there is nothing to delete.
		log.Printf("No mapping for deleted activity %d, nothing to do", event.ObjectID)
		return "noop", "", nil
	} else if err != nil {
		return "", "", err
	}

	cal, err := p.collab.NewCalendar(ctx, user)
	if err != nil {
		return "", "", err
	}
	if err := cal.DeleteEvent(ctx, mapping.CalendarEventID); err != nil {
		return "", "", err
	}
	if err := p.mappings.Delete(ctx, user.AthleteID, event.ObjectID); err != nil {
		return "", "", err
	}

	source, err := p.collab.NewActivitySource(ctx, user)
	if err != nil {
		return "", "", err
	}
	when := time.Unix(event.EventTime, 0).In(user.Location())
	if err := p.refreshSummaries(ctx, user, source, cal, when); err != nil {
		return "", "", err
	}
	return "deleted", mapping.CalendarEventID, nil
}

// refreshSummaries re-reconciles the summary windows containing date so the
// rollup events reflect the activity change.
func (p *Processor) refreshSummaries(ctx context.Context, user *store.User, source ActivitySource, cal Calendar, date time.Time) error {
	handler := summary.NewHandler(user, user.Location(), source, cal, p.summaries, p.users, p.renderer)
	return handler.UpdateSummaries(ctx, date)
}

func (p *Processor) eventTimezone(user *store.User, activity *strava.Activity) string {
	if tz := activity.LocationName(); tz != "" {
		return tz
	}
	return user.Location().String()
}

func (p *Processor) record(ctx context.Context, event *StravaEvent, deliveryID, action, calendarEventID string) {
	if p.auditBus == nil {
		return
	}
	values := map[string]any{
		"kind":      string(event.Kind()),
		"object_id": event.ObjectID,
		"action":    action,
	}
	if calendarEventID != "" {
		values["calendar_event_id"] = calendarEventID
	}
	if _, err := p.auditBus.Record(ctx, event.OwnerID, deliveryID, values); err != nil {
		log.Printf("Warning: failed to record audit entry: %v", err)
	}
}
