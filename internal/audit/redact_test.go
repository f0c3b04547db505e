package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncateIP(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"ipv4 truncated to /24", "203.0.113.77", "203.0.113.0/24"},
		{"ipv6 truncated to /48", "2001:db8:abcd:1234::1", "2001:db8:abcd::/48"},
		{"empty stays empty", "", ""},
		{"garbage never leaks", "not-an-ip", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateIP(tt.in))
		})
	}
}

func TestRedact_ProjectionOnly(t *testing.T) {
	event := Event{
		ID:          "ev-1",
		RecordID:    "rec-1",
		Action:      ActionRead,
		PerformedBy: "alice",
		Timestamp:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		IPAddress:   "203.0.113.77",
		UserAgent:   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		Details: map[string]string{
			"purpose":     "treatment",
			"outcome":     "allowed",
			"session_key": "must-not-leak",
		},
	}

	redacted := Redact(event)

	assert.Equal(t, "203.0.113.0/24", redacted.Network)
	assert.Contains(t, redacted.Device, "Chrome")
	assert.Contains(t, redacted.Device, " on ")

	assert.Equal(t, "treatment", redacted.Details["purpose"])
	assert.Equal(t, "allowed", redacted.Details["outcome"])
	_, leaked := redacted.Details["session_key"]
	assert.False(t, leaked, "non-allow-listed detail keys must not cross the boundary")

	// The stored event is untouched.
	assert.Equal(t, "203.0.113.77", event.IPAddress)
	assert.Contains(t, event.Details, "session_key")
}

func TestRedact_EmptyMetadata(t *testing.T) {
	redacted := Redact(Event{
		ID:          "ev-2",
		RecordID:    "rec-1",
		Action:      ActionAccessAttempt,
		PerformedBy: "bob",
		Timestamp:   time.Now(),
	})
	assert.Empty(t, redacted.Network)
	assert.Empty(t, redacted.Device)
	assert.Nil(t, redacted.Details)
}
