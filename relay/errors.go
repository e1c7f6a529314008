package relay

import (
	"errors"
	"net"

	"google.golang.org/api/googleapi"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/strava"
)

// IsTransient reports whether an upstream API failure is worth retrying:
// rate limits, server-side errors and network timeouts. Everything else is
// treated as permanent and dropped after logging.
func IsTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	var stravaErr *strava.APIError
	if errors.As(err, &stravaErr) {
		return stravaErr.StatusCode == 429 || stravaErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
