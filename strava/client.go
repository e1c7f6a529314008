package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/store"
)

const (
	apiBaseURL = "https://www.strava.com/api/v3"

	// Activities are fetched a page at a time; a summary window rarely holds
	// more than one page.
	activityPageSize = 100
)

// Endpoint is Strava's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://www.strava.com/oauth/authorize",
	TokenURL: "https://www.strava.com/oauth/token",
}

// APIError is a non-2xx response from the Strava API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("strava API returned %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Strava API on behalf of one user, refreshing the stored
// access token before calls when it is close to expiry.
type Client struct {
	config     *oauth2.Config
	users      *store.UserStore
	user       *store.User
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Strava API client bound to a user profile.
func NewClient(clientID, clientSecret string, users *store.UserStore, user *store.User) *Client {
	return &Client{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     Endpoint,
		},
		users:      users,
		user:       user,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    apiBaseURL,
	}
}

// refreshTokenIfNeeded refreshes the user's access token when it expires
// within 5 minutes, persisting the new credentials.
func (c *Client) refreshTokenIfNeeded(ctx context.Context) error {
	creds := c.user.Strava
	if creds.ExpiresAt.After(time.Now().Add(5 * time.Minute)) {
		return nil
	}
	if creds.RefreshToken == "" {
		return fmt.Errorf("no refresh token available for athlete %d", c.user.AthleteID)
	}

	current := &oauth2.Token{
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	}

	token, err := c.config.TokenSource(ctx, current).Token()
	if err != nil {
		return fmt.Errorf("failed to refresh Strava token for athlete %d: %w", c.user.AthleteID, err)
	}

	c.user.Strava = store.StravaCredentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	}
	if err := c.users.Update(ctx, c.user); err != nil {
		return fmt.Errorf("failed to persist refreshed Strava token: %w", err)
	}

	log.Printf("Refreshed Strava token for athlete %d", c.user.AthleteID)
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.refreshTokenIfNeeded(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build Strava request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.user.Strava.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("strava request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Strava response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode Strava response: %w", err)
	}
	return nil
}

// GetActivity fetches a single activity by id.
func (c *Client) GetActivity(ctx context.Context, activityID int64) (*Activity, error) {
	var activity Activity
	if err := c.get(ctx, fmt.Sprintf("/activities/%d", activityID), nil, &activity); err != nil {
		return nil, err
	}
	return &activity, nil
}

// GetActivities fetches the athlete's activities that started between after
// and before, paging until the API returns an empty page.
func (c *Client) GetActivities(ctx context.Context, after, before time.Time) ([]*Activity, error) {
	var activities []*Activity
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("after", strconv.FormatInt(after.Unix(), 10))
		query.Set("before", strconv.FormatInt(before.Unix(), 10))
		query.Set("page", strconv.Itoa(page))
		query.Set("per_page", strconv.Itoa(activityPageSize))

		var batch []*Activity
		if err := c.get(ctx, "/athlete/activities", query, &batch); err != nil {
			return nil, err
		}
		activities = append(activities, batch...)
		if len(batch) < activityPageSize {
			return activities, nil
		}
	}
}
