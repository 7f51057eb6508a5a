// Package worker applies comment commands delivered over JetStream, for
// producers that write asynchronously instead of calling the API.
package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/events"
	"github.com/quillnote/notes-platform/services/comments/internal/idempotency"
	"github.com/quillnote/notes-platform/services/comments/internal/service"
)

const (
	SubjectPrefix = "comments.cmd."
	Subjects      = SubjectPrefix + "*"
	Durable       = "comments_cmd"
)

// Command is the payload on comments.cmd.{create,edit,react,delete}. The
// producer is trusted to have authenticated UserID.
type Command struct {
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	CommentID string    `json:"comment_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	ClientIP  string    `json:"client_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Applier is the slice of the comment service the consumer drives.
type Applier interface {
	Create(ctx context.Context, caller domain.Caller, in service.CreateInput) (service.CommentView, error)
	Edit(ctx context.Context, caller domain.Caller, id, text string) (service.CommentView, error)
	React(ctx context.Context, caller domain.Caller, id, kind string) (service.ReactionView, error)
	Delete(ctx context.Context, caller domain.Caller, id string) (service.CommentView, error)
}

type outcome int

const (
	ack outcome = iota
	nak
	// term stops redelivery of a message that can never be applied.
	term
)

var errUnknownAction = errors.New("unknown command")

type Consumer struct {
	svc  Applier
	seen idempotency.Store
	log  *zap.Logger

	BatchSize int
	MaxWait   time.Duration
}

func New(svc Applier, seen idempotency.Store, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{svc: svc, seen: seen, log: log, BatchSize: 50, MaxWait: 2 * time.Second}
}

// Run pulls batches from the durable consumer until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, js nats.JetStreamContext) error {
	sub, err := js.PullSubscribe(Subjects, Durable, nats.BindStream(events.StreamName))
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	c.log.Info("command consumer started", zap.String("subjects", Subjects))
	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := sub.Fetch(c.BatchSize, nats.MaxWait(c.MaxWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			c.log.Warn("fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, m := range msgs {
			c.settle(m, c.handle(ctx, m.Subject, m.Data))
		}
	}
}

func (c *Consumer) settle(m *nats.Msg, o outcome) {
	var err error
	switch o {
	case ack:
		err = m.Ack()
	case nak:
		err = m.Nak()
	case term:
		err = m.Term()
	}
	if err != nil {
		c.log.Warn("settle message", zap.String("subject", m.Subject), zap.Error(err))
	}
}

// handle applies one command. Domain rejections are final and acked;
// anything else releases the idempotency key and asks for redelivery.
func (c *Consumer) handle(ctx context.Context, subject string, data []byte) outcome {
	action := strings.TrimPrefix(subject, SubjectPrefix)
	log := c.log.With(zap.String("action", action))

	var cmd Command
	if err := sonic.Unmarshal(data, &cmd); err != nil {
		log.Warn("invalid command payload", zap.Error(err))
		return term
	}
	if strings.TrimSpace(cmd.EventID) == "" {
		log.Warn("command without event_id")
		return term
	}
	log = log.With(zap.String("event_id", cmd.EventID))

	key := action + ":" + cmd.EventID
	done, err := c.seen.Check(ctx, key)
	if err != nil {
		log.Warn("idempotency check", zap.Error(err))
		return nak
	}
	if done {
		log.Debug("duplicate command skipped")
		return ack
	}

	err = c.apply(ctx, action, cmd)
	switch {
	case err == nil:
		return ack
	case errors.Is(err, errUnknownAction):
		log.Warn("unknown command")
		return term
	case domain.IsTerminal(err):
		log.Info("command rejected", zap.Error(err))
		return ack
	default:
		log.Warn("command failed, will retry", zap.Error(err))
		if rerr := c.seen.Release(ctx, key); rerr != nil {
			log.Warn("idempotency release", zap.Error(rerr))
		}
		return nak
	}
}

func (c *Consumer) apply(ctx context.Context, action string, cmd Command) error {
	caller := domain.Caller{UserID: strings.TrimSpace(cmd.UserID), Role: cmd.Role}
	var err error
	switch action {
	case "create":
		_, err = c.svc.Create(ctx, caller, service.CreateInput{
			Slug:     cmd.Slug,
			ParentID: cmd.ParentID,
			Text:     cmd.Text,
			ClientIP: cmd.ClientIP,
		})
	case "edit":
		_, err = c.svc.Edit(ctx, caller, cmd.CommentID, cmd.Text)
	case "react":
		_, err = c.svc.React(ctx, caller, cmd.CommentID, cmd.Kind)
	case "delete":
		_, err = c.svc.Delete(ctx, caller, cmd.CommentID)
	default:
		return errUnknownAction
	}
	return err
}
