package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/relay"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/streams"
)

// StravaWebhookHandler receives Strava webhook deliveries and enqueues them
// onto the ingest stream. Processing happens out of band so the endpoint can
// respond inside Strava's delivery timeout.
type StravaWebhookHandler struct {
	streamsHelper *streams.StreamsHelper
	verifyToken   string
}

// NewStravaWebhookHandler creates a new webhook handler.
func NewStravaWebhookHandler(streamsHelper *streams.StreamsHelper, verifyToken string) *StravaWebhookHandler {
	return &StravaWebhookHandler{
		streamsHelper: streamsHelper,
		verifyToken:   verifyToken,
	}
}

// RegisterRoutes registers the Strava webhook routes.
func (h *StravaWebhookHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/strava/webhook", h.handleVerification).Methods("GET")
	r.HandleFunc("/strava/webhook", h.handleEvent).Methods("POST")
}

// handleVerification answers Strava's subscription validation request by
// echoing the challenge when the verify token matches.
func (h *StravaWebhookHandler) handleVerification(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")
	challenge := query.Get("hub.challenge")

	if mode != "subscribe" || challenge == "" {
		http.Error(w, "Invalid verification request", http.StatusBadRequest)
		return
	}
	if h.verifyToken == "" || token != h.verifyToken {
		log.Printf("Webhook verification failed: verify token mismatch")
		http.Error(w, "Verify token mismatch", http.StatusForbidden)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"hub.challenge": challenge})
}

// handleEvent decodes a delivery and enqueues it for the consumer.
func (h *StravaWebhookHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	deliveryID := uuid.NewString()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	event, err := relay.DecodeEvent(body)
	if err != nil {
		log.Printf("Rejecting delivery %s: %v", deliveryID, err)
		http.Error(w, "Malformed event payload", http.StatusBadRequest)
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		http.Error(w, "Failed to encode event", http.StatusInternalServerError)
		return
	}

	msgID, err := h.streamsHelper.AppendToStream(ctx, streams.IngestStream, map[string]interface{}{
		"delivery_id": deliveryID,
		"payload":     string(payload),
		"received_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("Failed to enqueue delivery %s: %v", deliveryID, err)
		http.Error(w, "Failed to enqueue event", http.StatusInternalServerError)
		return
	}

	log.Printf("Enqueued %s event %d for athlete %d (delivery %s, msg %s)",
		event.Kind(), event.ObjectID, event.OwnerID, deliveryID, msgID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":      "queued",
		"delivery_id": deliveryID,
	})
}
