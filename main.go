package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/audit"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/gcal"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/relay"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/security"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/store"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/strava"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/streams"
	"github.com/SebTota/StravaCalendarSummaryEventProcessor/templates"
)

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
	Service string `json:"service"`
}

const VERSION = "0.0.1"

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	log.Println("Starting Strava Calendar Summary Event Processor...")

	// Initialize Redis
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	// Remove redis:// prefix if present
	if strings.HasPrefix(redisURL, "redis://") {
		redisURL = strings.TrimPrefix(redisURL, "redis://")
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")

	// Stores
	userStore := store.NewUserStore(redisClient)
	summaryStore := store.NewSummaryStore(redisClient)
	mappingStore := store.NewEventMappingStore(redisClient)

	// Google Calendar OAuth
	tokenStore := security.NewTokenStore(redisClient)
	calendarClientID := os.Getenv("CALENDAR_CLIENT_ID")
	calendarClientSecret := os.Getenv("CALENDAR_CLIENT_SECRET")
	if calendarClientID == "" || calendarClientSecret == "" {
		log.Fatal("CALENDAR_CLIENT_ID and CALENDAR_CLIENT_SECRET environment variables are required")
	}
	redirectURL := getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/google/callback")
	tokenStore.Configure(calendarClientID, calendarClientSecret, redirectURL)
	googleClient := security.NewGoogleServiceClient(tokenStore)

	// Strava API credentials for per-user token refresh
	stravaClientID := os.Getenv("STRAVA_CLIENT_ID")
	stravaClientSecret := os.Getenv("STRAVA_CLIENT_SECRET")
	if stravaClientID == "" || stravaClientSecret == "" {
		log.Fatal("STRAVA_CLIENT_ID and STRAVA_CLIENT_SECRET environment variables are required")
	}

	streamsHelper := streams.NewStreamsHelper(redisClient)
	auditBus := audit.NewBus(redisClient)

	collab := relay.Collaborators{
		NewActivitySource: func(ctx context.Context, user *store.User) (relay.ActivitySource, error) {
			return strava.NewClient(stravaClientID, stravaClientSecret, userStore, user), nil
		},
		NewCalendar: func(ctx context.Context, user *store.User) (relay.Calendar, error) {
			svc, err := googleClient.GetCalendarService(ctx, user.AthleteID)
			if err != nil {
				return nil, err
			}
			return gcal.NewCalendar(svc, user.CalendarID), nil
		},
	}

	renderer := templates.NewRenderer()
	processor := relay.NewProcessor(userStore, mappingStore, summaryStore, renderer, collab, auditBus)

	// Ingest consumer
	consumer := relay.NewEventConsumer(redisClient, processor)
	go func() {
		if err := consumer.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Event consumer stopped: %v", err)
		}
	}()

	// Periodic summary refresh
	refreshEnabled := strings.ToLower(strings.TrimSpace(os.Getenv("SUMMARY_REFRESH_ENABLED"))) != "false"
	refreshInterval := parseDurationOrDefault(os.Getenv("SUMMARY_REFRESH_INTERVAL"), 6*time.Hour)
	refresher := NewSummaryRefresher(userStore, summaryStore, renderer, collab, refreshInterval, refreshEnabled)
	if raw := os.Getenv("SUMMARY_REFRESH_ATHLETES"); raw != "" {
		refresher.SetAthletes(parseAthleteList(raw))
	}
	refresher.Start(ctx)

	r := mux.NewRouter()

	// Health check endpoint
	r.HandleFunc("/healthz", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	// Strava webhook endpoints
	webhookHandler := NewStravaWebhookHandler(streamsHelper, os.Getenv("STRAVA_VERIFY_TOKEN"))
	webhookHandler.RegisterRoutes(r)

	// Google Calendar OAuth endpoints
	authHandler := NewGoogleAuthHandler(tokenStore, googleClient)
	authHandler.RegisterRoutes(r)

	// Audit feed endpoints
	registerAuditFeedRoutes(r, auditBus)

	// Configure server
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Handler:      r,
		Addr:         "0.0.0.0:" + port,
		WriteTimeout: 180 * time.Second,
		ReadTimeout:  180 * time.Second,
	}

	log.Printf("Strava Calendar Summary Event Processor v%s starting on %s", VERSION, srv.Addr)

	// Setup graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	consumer.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := HealthResponse{
		OK:      true,
		Version: VERSION,
		Service: "strava-calendar-summary-event-processor",
	}

	json.NewEncoder(w).Encode(response)
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := map[string]string{
		"message": "Strava Calendar Summary Event Processor",
		"version": VERSION,
	}

	json.NewEncoder(w).Encode(response)
}

// Helper function to get environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseAthleteList parses a comma-separated list of athlete ids, skipping
// anything non-numeric.
func parseAthleteList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func parseDurationOrDefault(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return def
}
