// Package events publishes comment domain events to NATS JetStream.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	StreamName = "COMMENTS"
	// StreamSubjects covers both the events published here and the
	// commands consumed by the worker.
	StreamSubjects = "comments.>"

	SubjectCreated  = "comments.created"
	SubjectEdited   = "comments.edited"
	SubjectReacted  = "comments.reacted"
	SubjectDeleted  = "comments.deleted"
	SubjectReported = "comments.reported"
)

// Event is the envelope sent on every comments.* event subject.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	CommentID  string    `json:"comment_id,omitempty"`
	Slug       string    `json:"slug,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	Judgement  string    `json:"judgement,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is fire-and-forget. The zero value and a nil pointer are both
// no-op stubs.
type Publisher struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// New creates a Publisher. Pass js=nil for a no-op stub.
func New(js nats.JetStreamContext, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{js: js, log: log}
}

// Publish stamps EventID and OccurredAt when unset. Failures are logged and
// never reach the caller.
func (p *Publisher) Publish(_ context.Context, subject string, ev Event) {
	if p == nil || p.js == nil {
		return
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if ev.Type == "" {
		ev.Type = subject
	}
	data, err := sonic.Marshal(ev)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if _, err := p.js.PublishAsync(subject, data, nats.MsgId(ev.EventID)); err != nil {
		p.log.Warn("events: publish failed", zap.String("subject", subject), zap.Error(err))
	}
}

// EnsureStream creates the COMMENTS stream, or widens its subjects if an
// older config is found.
func EnsureStream(js nats.JetStreamContext) error {
	info, err := js.StreamInfo(StreamName)
	if err == nil {
		for _, s := range info.Config.Subjects {
			if s == StreamSubjects {
				return nil
			}
		}
		cfg := info.Config
		cfg.Subjects = []string{StreamSubjects}
		_, err := js.UpdateStream(&cfg)
		return err
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{StreamSubjects},
		Storage:  nats.FileStorage,
		MaxAge:   7 * 24 * time.Hour,
	})
	return err
}
