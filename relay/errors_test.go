package relay

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"github.com/SebTota/StravaCalendarSummaryEventProcessor/strava"
)

type timeoutErr struct{ timeout bool }

func (e *timeoutErr) Error() string   { return "net failure" }
func (e *timeoutErr) Timeout() bool   { return e.timeout }
func (e *timeoutErr) Temporary() bool { return e.timeout }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"google rate limit", &googleapi.Error{Code: 429}, true},
		{"google server error", &googleapi.Error{Code: 503}, true},
		{"google not found", &googleapi.Error{Code: 404}, false},
		{"google forbidden", &googleapi.Error{Code: 403}, false},
		{"strava rate limit", &strava.APIError{StatusCode: 429}, true},
		{"strava server error", &strava.APIError{StatusCode: 500}, true},
		{"strava unauthorized", &strava.APIError{StatusCode: 401}, false},
		{"network timeout", &timeoutErr{timeout: true}, true},
		{"network failure without timeout", &timeoutErr{timeout: false}, false},
		{"wrapped google error", fmt.Errorf("calendar call: %w", &googleapi.Error{Code: 500}), true},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
