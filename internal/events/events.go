// Package events publishes learner activity for other services to consume.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names an event kind. It is also the subject suffix on the bus.
type Type string

const (
	TypeTopicProgress  Type = "topic.progress"
	TypeTopicCompleted Type = "topic.completed"
	TypeContentReload  Type = "content.reloaded"
	TypeSettingChanged Type = "settings.changed"
)

// Event is the JSON payload published on the bus.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Language  string    `json:"language,omitempty"`
	Topic     string    `json:"topic,omitempty"`
	Progress  *int      `json:"progress,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New stamps a new event with an ID and the current time.
func New(t Type, language, topic string) Event {
	return Event{ID: uuid.NewString(), Type: t, Language: language, Topic: topic, Timestamp: time.Now().UTC()}
}

// WithProgress attaches a completion percent.
func (e Event) WithProgress(pct int) Event {
	e.Progress = &pct
	return e
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// Recorder keeps published events in memory. Useful for tests and for the
// HTTP API's recent activity feed.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewRecorder keeps at most limit events; limit <= 0 keeps everything.
func NewRecorder(limit int) *Recorder { return &Recorder{limit: limit} }

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = r.events[len(r.events)-r.limit:]
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Fanout publishes to several publishers and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
