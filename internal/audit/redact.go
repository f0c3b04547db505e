package audit

import (
	"net/netip"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// detailAllowList is the only detail keys allowed to leave the process
// boundary. Everything else stays in the stored event.
var detailAllowList = map[string]bool{
	"purpose":   true,
	"operation": true,
	"outcome":   true,
	"reason":    true,
	"grantee":   true,
}

// RedactedEvent is the external projection of an audit event. Redaction is a
// projection, never a mutation of the stored event.
type RedactedEvent struct {
	ID          string            `json:"id"`
	RecordID    string            `json:"recordId"`
	Action      Action            `json:"action"`
	PerformedBy string            `json:"performedBy"`
	Timestamp   time.Time         `json:"timestamp"`
	Network     string            `json:"network,omitempty"`
	Device      string            `json:"device,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Redact projects an event for external exposure: the IP is truncated to
// network-prefix granularity, the User-Agent reduced to a device summary, and
// details limited to the allow-listed keys.
func Redact(event Event) RedactedEvent {
	out := RedactedEvent{
		ID:          event.ID,
		RecordID:    event.RecordID,
		Action:      event.Action,
		PerformedBy: event.PerformedBy,
		Timestamp:   event.Timestamp,
		Network:     TruncateIP(event.IPAddress),
		Device:      deviceSummary(event.UserAgent),
	}
	for k, v := range event.Details {
		if !detailAllowList[k] {
			continue
		}
		if out.Details == nil {
			out.Details = make(map[string]string)
		}
		out.Details[k] = v
	}
	return out
}

// TruncateIP reduces an address to network-prefix granularity: /24 for IPv4,
// /48 for IPv6. Unparseable input maps to "" rather than leaking as-is.
func TruncateIP(ip string) string {
	if ip == "" {
		return ""
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return ""
	}
	return prefix.String()
}

// deviceSummary reduces a raw User-Agent to "Browser on OS".
func deviceSummary(userAgentString string) string {
	if userAgentString == "" {
		return ""
	}
	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name

	browser = strings.TrimSpace(browser)
	os = strings.TrimSpace(os)
	switch {
	case browser == "" && os == "":
		return "Unknown Device"
	case os == "":
		return browser
	case browser == "":
		return os
	default:
		return browser + " on " + os
	}
}
