package security

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// CalendarScopes are the Google Calendar scopes the relay needs to create and
// maintain summary events.
var CalendarScopes = []string{
	calendar.CalendarReadonlyScope,
	calendar.CalendarEventsScope,
}

// TokenInfo represents stored OAuth token information for one athlete.
type TokenInfo struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	AthleteID    int64     `json:"athlete_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TokenStore manages Google Calendar OAuth tokens in Redis.
type TokenStore struct {
	redisClient *redis.Client
	oauthConfig *oauth2.Config
}

// NewTokenStore creates a new token store.
func NewTokenStore(redisClient *redis.Client) *TokenStore {
	return &TokenStore{redisClient: redisClient}
}

// Configure sets the OAuth client used for auth URLs, exchanges and refreshes.
func (ts *TokenStore) Configure(clientID, clientSecret, redirectURL string) {
	ts.oauthConfig = &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       CalendarScopes,
		Endpoint:     google.Endpoint,
	}
	log.Printf("Configured Google Calendar OAuth with %d scopes", len(CalendarScopes))
}

func (ts *TokenStore) config() (*oauth2.Config, error) {
	if ts.oauthConfig == nil {
		return nil, fmt.Errorf("calendar OAuth not configured")
	}
	return ts.oauthConfig, nil
}

// GetAuthURL generates an OAuth authorization URL plus the CSRF state token.
func (ts *TokenStore) GetAuthURL(ctx context.Context, athleteID int64) (string, string, error) {
	config, err := ts.config()
	if err != nil {
		return "", "", err
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	stateKey := fmt.Sprintf("oauth_state:%s", state)
	if err := ts.redisClient.Set(ctx, stateKey, athleteID, 10*time.Minute).Err(); err != nil {
		return "", "", fmt.Errorf("failed to store OAuth state: %w", err)
	}

	authURL := config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	return authURL, state, nil
}

// ExchangeCodeForToken verifies the state, exchanges the authorization code
// and stores the resulting token. It returns the athlete the state belongs to.
func (ts *TokenStore) ExchangeCodeForToken(ctx context.Context, code, state string) (int64, *oauth2.Token, error) {
	config, err := ts.config()
	if err != nil {
		return 0, nil, err
	}

	stateKey := fmt.Sprintf("oauth_state:%s", state)
	defer ts.redisClient.Del(ctx, stateKey)

	athleteID, err := ts.redisClient.Get(ctx, stateKey).Int64()
	if err == redis.Nil {
		return 0, nil, fmt.Errorf("invalid or expired state parameter")
	} else if err != nil {
		return 0, nil, fmt.Errorf("failed to verify state: %w", err)
	}

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if err := ts.StoreToken(ctx, athleteID, token); err != nil {
		return 0, nil, fmt.Errorf("failed to store token: %w", err)
	}

	return athleteID, token, nil
}

// StoreToken stores OAuth token information for an athlete.
func (ts *TokenStore) StoreToken(ctx context.Context, athleteID int64, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	tokenInfo := &TokenInfo{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
		AthleteID:    athleteID,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	tokenData, err := json.Marshal(tokenInfo)
	if err != nil {
		return fmt.Errorf("failed to marshal token info: %w", err)
	}

	if err := ts.redisClient.Set(ctx, tokenKey(athleteID), tokenData, 0).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}

	log.Printf("Stored calendar OAuth token for athlete %d", athleteID)
	return nil
}

// GetToken retrieves the stored OAuth token for an athlete.
func (ts *TokenStore) GetToken(ctx context.Context, athleteID int64) (*oauth2.Token, error) {
	tokenData, err := ts.redisClient.Get(ctx, tokenKey(athleteID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("no calendar token found for athlete %d", athleteID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to retrieve token: %w", err)
	}

	var tokenInfo TokenInfo
	if err := json.Unmarshal([]byte(tokenData), &tokenInfo); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token info: %w", err)
	}

	return &oauth2.Token{
		AccessToken:  tokenInfo.AccessToken,
		RefreshToken: tokenInfo.RefreshToken,
		TokenType:    tokenInfo.TokenType,
		Expiry:       tokenInfo.Expiry,
	}, nil
}

// RefreshToken refreshes an expired OAuth token and stores the result.
func (ts *TokenStore) RefreshToken(ctx context.Context, athleteID int64) (*oauth2.Token, error) {
	config, err := ts.config()
	if err != nil {
		return nil, err
	}

	currentToken, err := ts.GetToken(ctx, athleteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get current token: %w", err)
	}

	if currentToken.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available for athlete %d", athleteID)
	}

	// Force the cached token to be considered expired so the TokenSource actually refreshes.
	if currentToken.Expiry.After(time.Now()) {
		currentToken.Expiry = time.Now().Add(-1 * time.Minute)
	}

	newToken, err := config.TokenSource(ctx, currentToken).Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := ts.StoreToken(ctx, athleteID, newToken); err != nil {
		return nil, fmt.Errorf("failed to store refreshed token: %w", err)
	}

	log.Printf("Refreshed calendar OAuth token for athlete %d", athleteID)
	return newToken, nil
}

// GetValidToken returns a valid token, refreshing if it expires within 5 minutes.
func (ts *TokenStore) GetValidToken(ctx context.Context, athleteID int64) (*oauth2.Token, error) {
	token, err := ts.GetToken(ctx, athleteID)
	if err != nil {
		return nil, err
	}

	if token.Expiry.Before(time.Now().Add(5 * time.Minute)) {
		log.Printf("Calendar token expired for athlete %d, refreshing...", athleteID)
		return ts.RefreshToken(ctx, athleteID)
	}

	return token, nil
}

// DeleteToken removes the stored token for an athlete.
func (ts *TokenStore) DeleteToken(ctx context.Context, athleteID int64) error {
	if err := ts.redisClient.Del(ctx, tokenKey(athleteID)).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	log.Printf("Deleted calendar OAuth token for athlete %d", athleteID)
	return nil
}

// HasToken reports whether an athlete has a calendar token on file.
func (ts *TokenStore) HasToken(ctx context.Context, athleteID int64) (bool, error) {
	n, err := ts.redisClient.Exists(ctx, tokenKey(athleteID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

func tokenKey(athleteID int64) string {
	return fmt.Sprintf("oauth_token:%d:calendar", athleteID)
}
