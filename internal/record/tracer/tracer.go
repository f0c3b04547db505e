// Package tracer provides a lightweight tracing abstraction for the record
// lifecycle service.
//
// The service emits spans around every lifecycle operation without depending
// on OpenTelemetry APIs directly. Implementations:
//   - NoopTracer: for tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the record lifecycle service.
const (
	SpanRecordWrite   = "record.write"
	SpanRecordRead    = "record.read"
	SpanRecordGrant   = "record.grant"
	SpanRecordRevoke  = "record.revoke"
	SpanRecordAudit   = "record.audit_trail"
	SpanRecordPurge   = "record.purge"
	SpanRecordPayment = "record.purchase"
)

// Attribute keys used by the record lifecycle service.
const (
	AttrRecordID    = "record_id"
	AttrRequester   = "requester"
	AttrOperation   = "operation"
	AttrFieldCount  = "field_count"
	AttrGrantCount  = "grant_count"
	AttrDecision    = "access.decision"
	AttrReason      = "access.reason"
)

// Event names used by the record lifecycle service.
const (
	EventAuditAppended   = "audit.appended"
	EventIntegrityFailed = "integrity.failed"
)
