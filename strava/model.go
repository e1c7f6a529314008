package strava

import (
	"strings"
	"time"
)

// Activity is the subset of a Strava activity the relay consumes.
type Activity struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	SportType      string  `json:"sport_type"`
	DistanceMeters float64 `json:"distance"`
	MovingTimeSec  int64   `json:"moving_time"`
	ElapsedTimeSec int64   `json:"elapsed_time"`

	StartDate      time.Time `json:"start_date"`
	StartDateLocal time.Time `json:"start_date_local"`
	// Timezone comes back as "(GMT-08:00) America/Los_Angeles".
	Timezone string `json:"timezone"`
}

// Duration returns the activity's elapsed time.
func (a *Activity) Duration() time.Duration {
	return time.Duration(a.ElapsedTimeSec) * time.Second
}

// LocationName strips Strava's GMT-offset prefix off the timezone field,
// leaving an IANA name usable with time.LoadLocation.
func (a *Activity) LocationName() string {
	tz := a.Timezone
	if idx := strings.LastIndex(tz, ") "); idx >= 0 {
		tz = tz[idx+2:]
	}
	return strings.TrimSpace(tz)
}
