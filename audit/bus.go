// Package audit records per-athlete processing outcomes on a Redis stream so
// deliveries can be traced live while debugging webhook behavior.
package audit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	streamKeyFormat   = "athlete:%d:audit"
	defaultBlock      = 5 * time.Second
	defaultBatchCount = 50
	maxEntries        = 1000
)

// Entry is the typed form of an audit stream record.
type Entry struct {
	ID         string         `json:"id"`
	Stream     string         `json:"stream"`
	AthleteID  int64          `json:"athlete_id"`
	DeliveryID string         `json:"delivery_id"`
	Values     map[string]any `json:"values"`
}

// Bus provides typed helpers for the per-athlete audit stream.
type Bus struct {
	client *redis.Client
}

// NewBus creates an audit bus backed by the given redis client.
func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// StreamKey returns the canonical audit stream key for an athlete.
func StreamKey(athleteID int64) string {
	return fmt.Sprintf(streamKeyFormat, athleteID)
}

// Record appends an outcome record, attaching a timestamp if missing.
func (b *Bus) Record(ctx context.Context, athleteID int64, deliveryID string, values map[string]any) (string, error) {
	if b == nil || b.client == nil {
		return "", fmt.Errorf("audit bus not configured")
	}

	if values == nil {
		values = make(map[string]any)
	}
	if _, ok := values["ts"]; !ok {
		values["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if deliveryID != "" {
		values["delivery_id"] = deliveryID
	}

	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(athleteID),
		MaxLen: maxEntries,
		Approx: true,
		Values: values,
	}).Result()
}

// Tail blocks for new entries after afterID and returns them with the latest
// ID observed.
func (b *Bus) Tail(ctx context.Context, athleteID int64, afterID string) ([]Entry, string, error) {
	if b == nil || b.client == nil {
		return nil, afterID, fmt.Errorf("audit bus not configured")
	}

	if strings.TrimSpace(afterID) == "" {
		afterID = "$"
	}

	res, err := b.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{StreamKey(athleteID), afterID},
		Count:   defaultBatchCount,
		Block:   defaultBlock,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, afterID, nil
		}
		return nil, afterID, err
	}

	entries := make([]Entry, 0)
	nextID := afterID

	for _, stream := range res {
		for _, msg := range stream.Messages {
			values := make(map[string]any, len(msg.Values))
			for k, v := range msg.Values {
				values[k] = v
			}
			entries = append(entries, Entry{
				ID:         msg.ID,
				Stream:     stream.Stream,
				AthleteID:  athleteIDFromStream(stream.Stream),
				DeliveryID: stringVal(values["delivery_id"]),
				Values:     values,
			})
			nextID = msg.ID
		}
	}

	return entries, nextID, nil
}

func athleteIDFromStream(stream string) int64 {
	parts := strings.Split(stream, ":")
	if len(parts) != 3 {
		return 0
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func stringVal(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return ""
	}
}
