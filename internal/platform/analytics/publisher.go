// Package analytics provides a fire-and-forget NATS publisher for gallery events.
// A nil Publisher is a valid no-op, so components never need to check whether
// an event bus is configured.
package analytics

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/trig-gallery/internal/platform/logging"
)

// Subject constants for every gallery event type.
const (
	SubjectHistoryCommitted = "gallery.history.committed"
	SubjectHistoryCleared   = "gallery.history.cleared"
	SubjectHistoryCompacted = "gallery.history.compacted"
	SubjectSmartSkip        = "gallery.feed.smart_skip"
	SubjectFeedExhausted    = "gallery.feed.exhausted"
	SubjectPhotoRotated     = "gallery.photo.rotated"
)

// Event is the canonical envelope sent to all gallery.* subjects.
type Event struct {
	EventID    string         `json:"event_id"`
	EventName  string         `json:"event_name"`
	VisitorID  string         `json:"visitor_id,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

// AsyncPublisher is the subset of nats.JetStreamContext used here.
type AsyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Publisher publishes gallery events to NATS JetStream.
type Publisher struct {
	js  AsyncPublisher
	log *zap.Logger
}

// New creates a Publisher. Pass js=nil to get a no-op stub.
func New(js AsyncPublisher, log *zap.Logger) *Publisher {
	return &Publisher{js: js, log: logging.OrNop(log)}
}

// Publish sends an event asynchronously. Failures are logged as warnings and
// never surface to the caller.
func (p *Publisher) Publish(subject, visitorID string, props map[string]any) {
	if p == nil || p.js == nil {
		return
	}
	ev := Event{
		EventID:    uuid.NewString(),
		EventName:  subject,
		VisitorID:  visitorID,
		OccurredAt: time.Now().UTC(),
		Properties: props,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("analytics: marshal failed", zap.String("event", subject), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		p.log.Warn("analytics: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// Decode parses an Event envelope received from a subscription.
func Decode(data []byte) (Event, error) {
	var ev Event
	err := json.Unmarshal(data, &ev)
	return ev, err
}
