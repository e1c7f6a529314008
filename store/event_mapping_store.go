package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventMapping ties a Strava activity to the calendar event created for it.
// The create-time templates are kept so later updates re-render with the exact
// templates the event was first built from, even if the user has since changed
// their preferences.
type EventMapping struct {
	ActivityID          int64     `json:"activity_id"`
	CalendarEventID     string    `json:"calendar_event_id"`
	TitleTemplate       string    `json:"title_template"`
	DescriptionTemplate string    `json:"description_template"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// EventMappingStore persists activity-to-calendar-event mappings in Redis.
type EventMappingStore struct {
	client *redis.Client
}

// NewEventMappingStore creates a new event mapping store.
func NewEventMappingStore(client *redis.Client) *EventMappingStore {
	return &EventMappingStore{client: client}
}

func mappingKey(athleteID, activityID int64) string {
	return fmt.Sprintf("activity_event:%d:%d", athleteID, activityID)
}

// Get returns the mapping for an activity id, or ErrNotFound.
func (s *EventMappingStore) Get(ctx context.Context, athleteID, activityID int64) (*EventMapping, error) {
	data, err := s.client.Get(ctx, mappingKey(athleteID, activityID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read event mapping %d: %w", activityID, err)
	}

	var mapping EventMapping
	if err := json.Unmarshal([]byte(data), &mapping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event mapping %d: %w", activityID, err)
	}
	return &mapping, nil
}

// Upsert stores a mapping, overwriting any previous one for the activity.
func (s *EventMappingStore) Upsert(ctx context.Context, athleteID int64, mapping *EventMapping) error {
	if mapping == nil {
		return fmt.Errorf("mapping cannot be nil")
	}
	mapping.UpdatedAt = time.Now().UTC()
	if mapping.CreatedAt.IsZero() {
		mapping.CreatedAt = mapping.UpdatedAt
	}

	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal event mapping %d: %w", mapping.ActivityID, err)
	}
	if err := s.client.Set(ctx, mappingKey(athleteID, mapping.ActivityID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store event mapping %d: %w", mapping.ActivityID, err)
	}
	return nil
}

// Delete removes a mapping. Deleting an absent mapping is not an error.
func (s *EventMappingStore) Delete(ctx context.Context, athleteID, activityID int64) error {
	if err := s.client.Del(ctx, mappingKey(athleteID, activityID)).Err(); err != nil {
		return fmt.Errorf("failed to delete event mapping %d: %w", activityID, err)
	}
	return nil
}
