package main

import (
	"context"
	"log"
	"time"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/relay"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/store"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/summary"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/templates"
)

// SummaryRefresher periodically recomputes the daily and weekly summary
// events for every known athlete. Webhook deliveries keep summaries fresh
// on their own; this loop catches athletes whose deliveries were missed.
type SummaryRefresher struct {
	users         *store.UserStore
	summaries     *store.SummaryStore
	renderer      *templates.Renderer
	collab        relay.Collaborators
	configuredIDs []int64
	interval      time.Duration
	enabled       bool
}

func NewSummaryRefresher(users *store.UserStore, summaries *store.SummaryStore, renderer *templates.Renderer, collab relay.Collaborators, interval time.Duration, enabled bool) *SummaryRefresher {
	return &SummaryRefresher{
		users:     users,
		summaries: summaries,
		renderer:  renderer,
		collab:    collab,
		interval:  interval,
		enabled:   enabled,
	}
}

// SetAthletes restricts the sweep to a fixed athlete list instead of scanning
// every stored profile.
func (s *SummaryRefresher) SetAthletes(athleteIDs []int64) {
	s.configuredIDs = athleteIDs
}

func (s *SummaryRefresher) Start(ctx context.Context) {
	if !s.enabled {
		log.Println("Summary refresh disabled")
		return
	}
	if s.interval <= 0 {
		s.interval = 6 * time.Hour
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			s.runOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *SummaryRefresher) runOnce(ctx context.Context) {
	athleteIDs := s.configuredIDs
	if len(athleteIDs) == 0 {
		var err error
		athleteIDs, err = s.users.ListAthleteIDs(ctx)
		if err != nil {
			log.Printf("Summary refresh: listing athletes failed: %v", err)
			return
		}
	}
	if len(athleteIDs) == 0 {
		return
	}

	log.Printf("Summary refresh: refreshing %d athletes", len(athleteIDs))
	for _, athleteID := range athleteIDs {
		if ctx.Err() != nil {
			return
		}
		if err := s.refreshAthlete(ctx, athleteID); err != nil {
			log.Printf("Summary refresh failed for athlete %d: %v", athleteID, err)
		}
	}
}

func (s *SummaryRefresher) refreshAthlete(ctx context.Context, athleteID int64) error {
	user, err := s.users.Get(ctx, athleteID)
	if err != nil {
		return err
	}
	prefs := user.Preferences
	if !prefs.DailySummaryEnabled && !prefs.WeeklySummaryEnabled {
		return nil
	}

	source, err := s.collab.NewActivitySource(ctx, user)
	if err != nil {
		return err
	}
	cal, err := s.collab.NewCalendar(ctx, user)
	if err != nil {
		return err
	}

	handler := summary.NewHandler(user, user.Location(), source, cal, s.summaries, s.users, s.renderer)
	return handler.UpdateSummaries(ctx, time.Now().In(user.Location()))
}
