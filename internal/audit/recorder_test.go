package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custodia/pkg/domain-errors"
	"custodia/pkg/requestcontext"
)

type failingStore struct{}

func (failingStore) Append(context.Context, Event) error { return errors.New("disk full") }
func (failingStore) ListByRecord(context.Context, string) ([]Event, error) {
	return nil, errors.New("disk full")
}
func (failingStore) CountByRecord(context.Context, string) (int, error) {
	return 0, errors.New("disk full")
}

func validEvent() Event {
	return Event{
		RecordID:    "rec-1",
		Action:      ActionRead,
		PerformedBy: "alice@example.com",
	}
}

func TestRecorder_EnrichesFromContext(t *testing.T) {
	store := NewInMemoryStore()
	recorder := NewRecorder(store, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithClock(context.Background(), func() time.Time { return fixed })
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")

	appended, err := recorder.Record(ctx, validEvent())
	require.NoError(t, err)

	assert.NotEmpty(t, appended.ID)
	assert.Equal(t, fixed, appended.Timestamp)
	assert.Equal(t, "203.0.113.7", appended.IPAddress)
	assert.Equal(t, "Mozilla/5.0", appended.UserAgent)

	stored, err := store.ListByRecord(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestRecorder_AppendFailureFailsOperation(t *testing.T) {
	recorder := NewRecorder(failingStore{})

	_, err := recorder.Record(context.Background(), validEvent())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStoreUnavailable))
}

func TestRecorder_RejectsInvalidEvents(t *testing.T) {
	recorder := NewRecorder(NewInMemoryStore())

	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{"missing record", func(e *Event) { e.RecordID = "" }},
		{"unknown action", func(e *Event) { e.Action = "browse" }},
		{"missing actor", func(e *Event) { e.PerformedBy = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := validEvent()
			tt.mutate(&event)
			_, err := recorder.Record(context.Background(), event)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestRecorder_ListNewestFirst(t *testing.T) {
	store := NewInMemoryStore()
	recorder := NewRecorder(store)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, action := range []Action{ActionCreate, ActionAccessGranted, ActionRead} {
		event := validEvent()
		event.Action = action
		event.Timestamp = base.Add(time.Duration(i) * time.Minute)
		_, err := recorder.Record(ctx, event)
		require.NoError(t, err)
	}

	events, err := recorder.List(ctx, "rec-1", Filter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, ActionRead, events[0].Action)
	assert.Equal(t, ActionCreate, events[2].Action)
}

func TestRecorder_ListFiltering(t *testing.T) {
	store := NewInMemoryStore()
	recorder := NewRecorder(store)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	actors := []string{"alice", "bob", "alice"}
	for i, action := range []Action{ActionRead, ActionRead, ActionAccessDenied} {
		event := validEvent()
		event.Action = action
		event.PerformedBy = actors[i]
		event.Timestamp = base.Add(time.Duration(i) * time.Hour)
		_, err := recorder.Record(ctx, event)
		require.NoError(t, err)
	}

	t.Run("by action", func(t *testing.T) {
		events, err := recorder.List(ctx, "rec-1", Filter{Action: ActionRead})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("by actor", func(t *testing.T) {
		events, err := recorder.List(ctx, "rec-1", Filter{PerformedBy: "bob"})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("by time window", func(t *testing.T) {
		events, err := recorder.List(ctx, "rec-1", Filter{Since: base.Add(90 * time.Minute)})
		require.NoError(t, err)
		assert.Len(t, events, 1)
		assert.Equal(t, ActionAccessDenied, events[0].Action)
	})

	t.Run("with limit", func(t *testing.T) {
		events, err := recorder.List(ctx, "rec-1", Filter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, events, 2)
		assert.Equal(t, ActionAccessDenied, events[0].Action, "limit keeps newest events")
	})
}

func TestRecorder_CountGrowsMonotonically(t *testing.T) {
	store := NewInMemoryStore()
	recorder := NewRecorder(store)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := recorder.Record(ctx, validEvent())
		require.NoError(t, err)

		count, err := recorder.Count(ctx, "rec-1")
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
}
