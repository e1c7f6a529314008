package security

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// GoogleServiceClient provides authenticated access to Google Calendar.
type GoogleServiceClient struct {
	tokenStore *TokenStore
}

// NewGoogleServiceClient creates a new Google service client.
func NewGoogleServiceClient(tokenStore *TokenStore) *GoogleServiceClient {
	return &GoogleServiceClient{tokenStore: tokenStore}
}

// GetCalendarService returns an authenticated Calendar service for an athlete.
func (g *GoogleServiceClient) GetCalendarService(ctx context.Context, athleteID int64) (*calendar.Service, error) {
	token, err := g.tokenStore.GetValidToken(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get valid Calendar token for athlete %d: %w", athleteID, err)
	}

	config, err := g.tokenStore.config()
	if err != nil {
		return nil, err
	}

	client := config.Client(ctx, token)

	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return service, nil
}

// ValidateCalendarAccess checks if Calendar access is working for an athlete.
func (g *GoogleServiceClient) ValidateCalendarAccess(ctx context.Context, athleteID int64) error {
	service, err := g.GetCalendarService(ctx, athleteID)
	if err != nil {
		return err
	}

	_, err = service.CalendarList.List().MaxResults(1).Do()
	if err != nil {
		return fmt.Errorf("Calendar access validation failed: %w", err)
	}

	log.Printf("Calendar access validated for athlete %d", athleteID)
	return nil
}

// RevokeCalendarAccess drops the stored Calendar token for an athlete.
func (g *GoogleServiceClient) RevokeCalendarAccess(ctx context.Context, athleteID int64) error {
	if err := g.tokenStore.DeleteToken(ctx, athleteID); err != nil {
		return fmt.Errorf("failed to delete calendar token: %w", err)
	}

	log.Printf("Revoked calendar access for athlete %d", athleteID)
	return nil
}
