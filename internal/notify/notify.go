// Package notify delivers in-app notifications asynchronously.
//
// Producers fire and forget; a single drain goroutine hands events to the
// configured sink. A full buffer never blocks a request, it only increments
// the dropped counter.
package notify

import (
	"context"
	"time"
)

// Kind classifies a notification row.
type Kind string

const (
	KindSystem       Kind = "system"
	KindAdmin        Kind = "admin"
	KindDeviceStatus Kind = "device_status"
)

// Event is one notification to be raised. When Broadcast is true the event
// targets every administrator account and UserID is ignored.
type Event struct {
	UserID    int64
	Broadcast bool
	Message   string
	Kind      Kind
	CreatedAt time.Time
}

// Sink receives drained events.
type Sink interface {
	Deliver(ctx context.Context, event Event)
}

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Deliver(context.Context, Event) {}

// ChannelSink buffers events for a consumer, used by tests.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Deliver(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}
