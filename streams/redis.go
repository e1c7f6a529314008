// Package streams wraps the Redis stream operations used for webhook ingest
// and the audit feed.
package streams

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// IngestStream is the stream webhook deliveries are enqueued onto before the
// consumer picks them up.
const IngestStream = "strava:events:in"

// Streams older entries are trimmed past this length.
const defaultMaxLen = 10000

// StreamsHelper provides helper methods for working with Redis streams.
type StreamsHelper struct {
	client *redis.Client
}

// NewStreamsHelper creates a new streams helper.
func NewStreamsHelper(client *redis.Client) *StreamsHelper {
	return &StreamsHelper{client: client}
}

// AppendToStream appends data to a Redis stream, trimming approximately to
// the default max length.
func (sh *StreamsHelper) AppendToStream(ctx context.Context, streamKey string, data map[string]interface{}) (string, error) {
	return sh.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		MaxLen: defaultMaxLen,
		Approx: true,
		Values: data,
	}).Result()
}

// CreateConsumerGroup creates a consumer group for a stream, ignoring the
// error when the group already exists.
func (sh *StreamsHelper) CreateConsumerGroup(ctx context.Context, streamKey, group string) error {
	err := sh.client.XGroupCreateMkStream(ctx, streamKey, group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", group, err)
	}
	return nil
}

// ReadFromGroup reads pending entries for a consumer group, blocking briefly.
func (sh *StreamsHelper) ReadFromGroup(ctx context.Context, streamKey, group, consumer string, count int64) ([]redis.XStream, error) {
	return sh.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{streamKey, ">"},
		Count:    count,
		Block:    2 * time.Second,
	}).Result()
}

// AcknowledgeMessage acknowledges messages in a consumer group.
func (sh *StreamsHelper) AcknowledgeMessage(ctx context.Context, streamKey, group string, messageIDs ...string) (int64, error) {
	return sh.client.XAck(ctx, streamKey, group, messageIDs...).Result()
}

// GetStreamLength returns the length of a stream.
func (sh *StreamsHelper) GetStreamLength(ctx context.Context, streamKey string) (int64, error) {
	return sh.client.XLen(ctx, streamKey).Result()
}
