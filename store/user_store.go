package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUserNotFound is returned when no profile exists for an athlete id.
// Webhook deliveries for deleted or never-registered athletes surface this.
var ErrUserNotFound = errors.New("user not found")

// EndOfWeek is the last day of a user's logical week.
type EndOfWeek string

const (
	EndOfWeekMonday    EndOfWeek = "monday"
	EndOfWeekTuesday   EndOfWeek = "tuesday"
	EndOfWeekWednesday EndOfWeek = "wednesday"
	EndOfWeekThursday  EndOfWeek = "thursday"
	EndOfWeekFriday    EndOfWeek = "friday"
	EndOfWeekSaturday  EndOfWeek = "saturday"
	EndOfWeekSunday    EndOfWeek = "sunday"
)

var endOfWeekDays = map[EndOfWeek]time.Weekday{
	EndOfWeekMonday:    time.Monday,
	EndOfWeekTuesday:   time.Tuesday,
	EndOfWeekWednesday: time.Wednesday,
	EndOfWeekThursday:  time.Thursday,
	EndOfWeekFriday:    time.Friday,
	EndOfWeekSaturday:  time.Saturday,
	EndOfWeekSunday:    time.Sunday,
}

// ParseEndOfWeek parses a stored end-of-week value, defaulting to Sunday.
func ParseEndOfWeek(raw string) EndOfWeek {
	day := EndOfWeek(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := endOfWeekDays[day]; !ok {
		return EndOfWeekSunday
	}
	return day
}

// Weekday returns the time.Weekday for the end-of-week value.
func (e EndOfWeek) Weekday() time.Weekday {
	if day, ok := endOfWeekDays[e]; ok {
		return day
	}
	return time.Sunday
}

// StravaCredentials holds the per-user Strava OAuth grant.
type StravaCredentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CalendarPreferences controls which summaries are produced and how events are rendered.
type CalendarPreferences struct {
	DailySummaryEnabled  bool      `json:"daily_summary_enabled"`
	WeeklySummaryEnabled bool      `json:"weekly_summary_enabled"`
	EndOfWeek            EndOfWeek `json:"end_of_week"`

	TitleTemplate       string `json:"title_template"`
	DescriptionTemplate string `json:"description_template"`

	WeeklyTitleTemplate       string `json:"weekly_title_template"`
	WeeklyDescriptionTemplate string `json:"weekly_description_template"`

	DailyTitleTemplate       string `json:"daily_title_template"`
	DailyDescriptionTemplate string `json:"daily_description_template"`
}

// User is the stored profile for one Strava athlete.
type User struct {
	AthleteID  int64  `json:"athlete_id"`
	CalendarID string `json:"calendar_id"`
	Timezone   string `json:"timezone"`

	Strava      StravaCredentials   `json:"strava"`
	Preferences CalendarPreferences `json:"preferences"`

	// WeeklySummaryEvent is the cached pointer to the most recent weekly summary
	// calendar event, checked before hitting the summary store.
	WeeklySummaryEvent *SummaryRecord `json:"weekly_summary_event,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location resolves the user's timezone, falling back to UTC.
func (u *User) Location() *time.Location {
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil || u.Timezone == "" {
		return time.UTC
	}
	return loc
}

// UserStore persists user profiles in Redis as JSON documents.
type UserStore struct {
	client *redis.Client
}

// NewUserStore creates a new user store.
func NewUserStore(client *redis.Client) *UserStore {
	return &UserStore{client: client}
}

func userKey(athleteID int64) string {
	return fmt.Sprintf("user:%d", athleteID)
}

// Get returns the profile for an athlete id.
func (s *UserStore) Get(ctx context.Context, athleteID int64) (*User, error) {
	data, err := s.client.Get(ctx, userKey(athleteID)).Result()
	if err == redis.Nil {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read user %d: %w", athleteID, err)
	}

	var user User
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user %d: %w", athleteID, err)
	}
	return &user, nil
}

// Update writes a user profile back, bumping UpdatedAt.
func (s *UserStore) Update(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	user.UpdatedAt = time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = user.UpdatedAt
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user %d: %w", user.AthleteID, err)
	}
	if err := s.client.Set(ctx, userKey(user.AthleteID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store user %d: %w", user.AthleteID, err)
	}
	return nil
}

// Delete removes a user profile. Deleting an absent profile is not an error.
func (s *UserStore) Delete(ctx context.Context, athleteID int64) error {
	if err := s.client.Del(ctx, userKey(athleteID)).Err(); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", athleteID, err)
	}
	return nil
}

// ListAthleteIDs scans for every stored profile. Used by the periodic refresher.
func (s *UserStore) ListAthleteIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	iter := s.client.Scan(ctx, 0, "user:*", 100).Iterator()
	for iter.Next(ctx) {
		var id int64
		if _, err := fmt.Sscanf(iter.Val(), "user:%d", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return ids, nil
}
