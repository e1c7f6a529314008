// Package relay turns Strava webhook deliveries into calendar mutations.
package relay

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent marks a delivery whose payload is missing or undecodable.
// Processing of the delivery is aborted; redelivery is the sender's concern.
var ErrMalformedEvent = errors.New("malformed event payload")

// EventKind tags a decoded webhook event so handling is exhaustive.
type EventKind string

const (
	KindActivityCreate EventKind = "activity_create"
	KindActivityUpdate EventKind = "activity_update"
	KindActivityDelete EventKind = "activity_delete"
	KindAthleteDeauth  EventKind = "athlete_deauth"
	KindUnknown        EventKind = "unknown"
)

// StravaEvent is the decoded webhook payload.
type StravaEvent struct {
	ObjectType string            `json:"object_type"`
	ObjectID   int64             `json:"object_id"`
	AspectType string            `json:"aspect_type"`
	OwnerID    int64             `json:"owner_id"`
	EventTime  int64             `json:"event_time"`
	Updates    map[string]string `json:"updates,omitempty"`
}

// Kind classifies the event. An athlete update carrying authorized=false is a
// de-authorization; anything else outside the activity aspects is unknown.
func (e *StravaEvent) Kind() EventKind {
	switch e.ObjectType {
	case "activity":
		switch e.AspectType {
		case "create":
			return KindActivityCreate
		case "update":
			return KindActivityUpdate
		case "delete":
			return KindActivityDelete
		}
	case "athlete":
		if e.AspectType == "update" && e.Updates["authorized"] == "false" {
			return KindAthleteDeauth
		}
	}
	return KindUnknown
}

// pushEnvelope is the Pub/Sub-style push wrapper the webhook forwarder posts:
// the Strava event JSON rides base64-encoded in message.data.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodeEvent decodes a webhook body into a StravaEvent. A push envelope with
// base64 data is unwrapped first; a raw Strava event body is accepted as-is.
func DecodeEvent(body []byte) (*StravaEvent, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedEvent)
	}

	payload := body
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message.Data != "" {
		decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 data: %v", ErrMalformedEvent, err)
		}
		payload = decoded
	}

	var event StravaEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.ObjectType == "" || event.OwnerID == 0 {
		return nil, fmt.Errorf("%w: missing object_type or owner_id", ErrMalformedEvent)
	}

	return &event, nil
}
