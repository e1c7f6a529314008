package relay

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStravaEvent_Kind(t *testing.T) {
	tests := []struct {
		name  string
		event StravaEvent
		want  EventKind
	}{
		{
			name:  "activity create",
			event: StravaEvent{ObjectType: "activity", AspectType: "create", OwnerID: 1},
			want:  KindActivityCreate,
		},
		{
			name:  "activity update",
			event: StravaEvent{ObjectType: "activity", AspectType: "update", OwnerID: 1},
			want:  KindActivityUpdate,
		},
		{
			name:  "activity delete",
			event: StravaEvent{ObjectType: "activity", AspectType: "delete", OwnerID: 1},
			want:  KindActivityDelete,
		},
		{
			name: "athlete deauthorization",
			event: StravaEvent{
				ObjectType: "athlete", AspectType: "update", OwnerID: 1,
				Updates: map[string]string{"authorized": "false"},
			},
			want: KindAthleteDeauth,
		},
		{
			name: "athlete update without revocation",
			event: StravaEvent{
				ObjectType: "athlete", AspectType: "update", OwnerID: 1,
				Updates: map[string]string{"title": "renamed"},
			},
			want: KindUnknown,
		},
		{
			name:  "unknown object type",
			event: StravaEvent{ObjectType: "segment", AspectType: "create", OwnerID: 1},
			want:  KindUnknown,
		},
		{
			name:  "unknown aspect",
			event: StravaEvent{ObjectType: "activity", AspectType: "archive", OwnerID: 1},
			want:  KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Kind())
		})
	}
}

func TestDecodeEvent_RawBody(t *testing.T) {
	body := []byte(`{"object_type":"activity","object_id":123,"aspect_type":"create","owner_id":42,"event_time":1717581600}`)

	event, err := DecodeEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "activity", event.ObjectType)
	assert.Equal(t, int64(123), event.ObjectID)
	assert.Equal(t, int64(42), event.OwnerID)
	assert.Equal(t, KindActivityCreate, event.Kind())
}

func TestDecodeEvent_PushEnvelope(t *testing.T) {
	inner := `{"object_type":"activity","object_id":123,"aspect_type":"update","owner_id":42}`
	envelope := fmt.Sprintf(`{"message":{"data":%q,"messageId":"msg-1"},"subscription":"sub"}`,
		base64.StdEncoding.EncodeToString([]byte(inner)))

	event, err := DecodeEvent([]byte(envelope))
	require.NoError(t, err)
	assert.Equal(t, int64(123), event.ObjectID)
	assert.Equal(t, KindActivityUpdate, event.Kind())
}

func TestDecodeEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty body", nil},
		{"not json", []byte("not json")},
		{"envelope with bad base64", []byte(`{"message":{"data":"@@@not-base64@@@"}}`)},
		{"missing object type", []byte(`{"owner_id":42}`)},
		{"missing owner id", []byte(`{"object_type":"activity"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEvent(tt.body)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEvent)
		})
	}
}

func TestDecodeEvent_RoundTripsThroughQueuePayload(t *testing.T) {
	original := &StravaEvent{
		ObjectType: "athlete",
		ObjectID:   42,
		AspectType: "update",
		OwnerID:    42,
		EventTime:  1717581600,
		Updates:    map[string]string{"authorized": "false"},
	}

	payload, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := DecodeEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, KindAthleteDeauth, decoded.Kind())
	assert.Equal(t, original.EventTime, decoded.EventTime)
}
