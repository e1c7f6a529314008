package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/store"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/streams"
)

const (
	ConsumerGroup = "event-processor"
	ConsumerName  = "worker-1"

	// Transient upstream failures are retried this many times with a doubling
	// delay before the delivery is dropped.
	maxAttempts    = 3
	retryBaseDelay = 2 * time.Second
)

// EventConsumer drains the ingest stream and hands deliveries to the processor.
type EventConsumer struct {
	client    *redis.Client
	streams   *streams.StreamsHelper
	processor *Processor
	stopChan  chan struct{}
}

// NewEventConsumer creates a consumer over the ingest stream.
func NewEventConsumer(client *redis.Client, processor *Processor) *EventConsumer {
	return &EventConsumer{
		client:    client,
		streams:   streams.NewStreamsHelper(client),
		processor: processor,
		stopChan:  make(chan struct{}),
	}
}

// Start blocks reading the ingest stream until Stop or context cancellation.
func (c *EventConsumer) Start(ctx context.Context) error {
	log.Println("Starting Strava event consumer")

	if err := c.streams.CreateConsumerGroup(ctx, streams.IngestStream, ConsumerGroup); err != nil {
		return err
	}

	ticker := time.NewTicker(100 * time.Millisecond) // Small delay to prevent tight loop if empty
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			res, err := c.streams.ReadFromGroup(ctx, streams.IngestStream, ConsumerGroup, ConsumerName, 10)
			if err != nil && err != redis.Nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Printf("Error reading ingest stream: %v", err)
				continue
			}

			for _, stream := range res {
				for _, msg := range stream.Messages {
					c.handleMessage(ctx, msg.Values)
					if _, err := c.streams.AcknowledgeMessage(ctx, stream.Stream, ConsumerGroup, msg.ID); err != nil {
						log.Printf("Warning: failed to ack message %s: %v", msg.ID, err)
					}
				}
			}
		}
	}
}

// Stop stops the consumer loop.
func (c *EventConsumer) Stop() {
	close(c.stopChan)
}

// handleMessage decodes a queued delivery and processes it, retrying
// transient upstream failures. All failure modes end in an ack: malformed
// payloads and orphaned users are dropped with a log line, and permanent
// upstream errors are not worth redelivering.
func (c *EventConsumer) handleMessage(ctx context.Context, values map[string]interface{}) {
	deliveryID, _ := values["delivery_id"].(string)
	payload, _ := values["payload"].(string)
	if payload == "" {
		log.Printf("Dropping delivery %s: empty payload", deliveryID)
		return
	}

	var event StravaEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Printf("Dropping delivery %s: undecodable payload: %v", deliveryID, err)
		return
	}

	for attempt := 1; ; attempt++ {
		err := c.processor.Process(ctx, deliveryID, &event)
		if err == nil {
			return
		}

		if errors.Is(err, ErrMalformedEvent) {
			log.Printf("Dropping malformed delivery %s: %v", deliveryID, err)
			return
		}
		if errors.Is(err, store.ErrUserNotFound) {
			log.Printf("Dropping delivery %s for unknown athlete %d: %v", deliveryID, event.OwnerID, err)
			return
		}
		if !IsTransient(err) || attempt >= maxAttempts {
			log.Printf("Dropping delivery %s after %d attempt(s): %v", deliveryID, attempt, err)
			return
		}

		delay := retryBaseDelay << (attempt - 1)
		log.Printf("Transient failure on delivery %s (attempt %d), retrying in %s: %v",
			deliveryID, attempt, delay, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
