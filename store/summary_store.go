package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// SummaryRecord associates a summary window with the calendar event that
// represents it. The window end date is the natural key.
type SummaryRecord struct {
	CalendarEventID string    `json:"calendar_event_id"`
	WindowStart     time.Time `json:"window_start"`
	WindowEnd       time.Time `json:"window_end"`
}

// EndDate returns the calendar date key for the record's window end.
func (r *SummaryRecord) EndDate() string {
	return r.WindowEnd.Format("2006-01-02")
}

// SummaryStore persists summary calendar event records per user, keyed by the
// window end date ("2006-01-02", prefixed "daily:" for day windows).
type SummaryStore struct {
	client *redis.Client
}

// NewSummaryStore creates a new summary store.
func NewSummaryStore(client *redis.Client) *SummaryStore {
	return &SummaryStore{client: client}
}

func summaryKey(athleteID int64, dateKey string) string {
	return fmt.Sprintf("summary_event:%d:%s", athleteID, dateKey)
}

// Get returns the summary record stored under a date key.
func (s *SummaryStore) Get(ctx context.Context, athleteID int64, dateKey string) (*SummaryRecord, error) {
	data, err := s.client.Get(ctx, summaryKey(athleteID, dateKey)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to read summary record %s: %w", dateKey, err)
	}

	var record SummaryRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary record %s: %w", dateKey, err)
	}
	return &record, nil
}

// Upsert stores a summary record under a date key, overwriting any previous one.
func (s *SummaryStore) Upsert(ctx context.Context, athleteID int64, dateKey string, record *SummaryRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal summary record %s: %w", dateKey, err)
	}
	if err := s.client.Set(ctx, summaryKey(athleteID, dateKey), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store summary record %s: %w", dateKey, err)
	}
	return nil
}
