package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/security"
)

// GoogleAuthHandler exposes the Google Calendar OAuth linking flow.
type GoogleAuthHandler struct {
	tokenStore   *security.TokenStore
	googleClient *security.GoogleServiceClient
}

// NewGoogleAuthHandler creates a new Google auth handler.
func NewGoogleAuthHandler(tokenStore *security.TokenStore, googleClient *security.GoogleServiceClient) *GoogleAuthHandler {
	return &GoogleAuthHandler{
		tokenStore:   tokenStore,
		googleClient: googleClient,
	}
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// CallbackResponse represents OAuth callback response
type CallbackResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	AthleteID int64  `json:"athlete_id,omitempty"`
}

// RegisterRoutes registers OAuth routes.
func (h *GoogleAuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/auth/google/url", h.handleAuthURL).Methods("GET")
	r.HandleFunc("/auth/google/callback", h.handleCallback).Methods("GET")
	r.HandleFunc("/auth/google/status", h.handleStatus).Methods("GET")
}

func athleteIDParam(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("athlete_id")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *GoogleAuthHandler) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := athleteIDParam(r)
	if !ok {
		http.Error(w, "athlete_id parameter is required", http.StatusBadRequest)
		return
	}

	authURL, state, err := h.tokenStore.GetAuthURL(r.Context(), athleteID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{AuthURL: authURL, State: state})
}

func (h *GoogleAuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		http.Error(w, "code and state parameters are required", http.StatusBadRequest)
		return
	}

	athleteID, _, err := h.tokenStore.ExchangeCodeForToken(r.Context(), code, state)
	if err != nil {
		log.Printf("OAuth callback failed: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(CallbackResponse{Success: false, Message: err.Error()})
		return
	}

	log.Printf("Linked Google Calendar for athlete %d", athleteID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CallbackResponse{
		Success:   true,
		Message:   "Google Calendar connected",
		AthleteID: athleteID,
	})
}

func (h *GoogleAuthHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	athleteID, ok := athleteIDParam(r)
	if !ok {
		http.Error(w, "athlete_id parameter is required", http.StatusBadRequest)
		return
	}

	linked, err := h.tokenStore.HasToken(r.Context(), athleteID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"athlete_id": athleteID,
		"linked":     linked,
	})
}
