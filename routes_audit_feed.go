package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/audit"
)

type auditFeedHandler struct {
	bus *audit.Bus
}

func registerAuditFeedRoutes(r *mux.Router, bus *audit.Bus) {
	h := &auditFeedHandler{bus: bus}
	r.HandleFunc("/audit/stream", h.handleSSE).Methods("GET")
	r.HandleFunc("/audit/ws", h.handleWebSocket).Methods("GET")
}

func auditAthleteID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("athlete_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *auditFeedHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "audit bus unavailable", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	athleteID, ok := auditAthleteID(r)
	if !ok {
		http.Error(w, "athlete_id parameter is required", http.StatusBadRequest)
		return
	}
	lastID := strings.TrimSpace(r.URL.Query().Get("after"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Open the stream right away so clients see the headers before the
	// first entry arrives.
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
			continue
		default:
		}

		entries, nextID, err := h.bus.Tail(ctx, athleteID, lastID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("Audit tail error for athlete %d: %v", athleteID, err)
			time.Sleep(300 * time.Millisecond)
			continue
		}

		if len(entries) == 0 {
			continue
		}

		lastID = nextID
		for _, entry := range entries {
			payload, err := json.Marshal(entry)
			if err != nil {
				log.Printf("Audit encode error: %v", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\n", entry.ID)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

var auditUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Output-only debugging surface.
		return true
	},
}

func (h *auditFeedHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		http.Error(w, "audit bus unavailable", http.StatusServiceUnavailable)
		return
	}

	athleteID, ok := auditAthleteID(r)
	if !ok {
		http.Error(w, "athlete_id parameter is required", http.StatusBadRequest)
		return
	}
	lastID := strings.TrimSpace(r.URL.Query().Get("after"))

	conn, err := auditUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()

	for {
		entries, nextID, err := h.bus.Tail(ctx, athleteID, lastID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(entries) == 0 {
			continue
		}

		lastID = nextID
		for _, entry := range entries {
			if err := conn.WriteJSON(entry); err != nil {
				return
			}
		}
	}
}
