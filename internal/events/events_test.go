package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }
func (f failingPublisher) Close() error                         { return nil }

func TestEventJSON(t *testing.T) {
	e := New(TypeTopicProgress, "python", "Loops").WithProgress(40)
	require.NotEmpty(t, e.ID)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "topic.progress", decoded["type"])
	assert.Equal(t, "python", decoded["language"])
	assert.InDelta(t, 40, decoded["progress"], 0)
}

func TestRecorderLimit(t *testing.T) {
	r := NewRecorder(2)
	for _, topic := range []string{"a", "b", "c"} {
		require.NoError(t, r.Publish(t.Context(), New(TypeTopicCompleted, "go", topic)))
	}
	got := r.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Topic)
	assert.Equal(t, "c", got[1].Topic)
}

func TestFanoutReturnsFirstErrorButDeliversAll(t *testing.T) {
	rec := NewRecorder(0)
	boom := errors.New("boom")
	f := Fanout{failingPublisher{err: boom}, rec, NoopPublisher{}}

	err := f.Publish(t.Context(), New(TypeContentReload, "", ""))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.Events(), 1)
	assert.NoError(t, f.Close())
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "learn.topic.completed", Subject("learn", TypeTopicCompleted))
}
