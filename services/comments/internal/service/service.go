// Package service is the transport-neutral comment API. Every operation
// takes the verified caller explicitly; HTTP, gRPC and the command consumer
// are thin adapters over it.
package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/services/comments/internal/config"
	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/events"
	"github.com/quillnote/notes-platform/services/comments/internal/history"
	"github.com/quillnote/notes-platform/services/comments/internal/moderation"
	"github.com/quillnote/notes-platform/services/comments/internal/pager"
	"github.com/quillnote/notes-platform/services/comments/internal/reaction"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
	"github.com/quillnote/notes-platform/services/comments/internal/thread"
)

const maxSlugLength = 256

type TextFilter interface {
	Sanitize(raw string) string
	Render(text string) string
}

type Locator interface {
	Locate(ctx context.Context, ip string) string
}

type EventPublisher interface {
	Publish(ctx context.Context, subject string, ev events.Event)
}

type Deps struct {
	Store  store.CommentStore
	Text   TextFilter
	Geo    Locator
	Events EventPublisher
	Policy config.Policy
	Logger *zap.Logger
}

type Service struct {
	store      store.CommentStore
	threads    *thread.Manager
	reactions  *reaction.Engine
	history    *history.Service
	moderation *moderation.Service
	text       TextFilter
	geo        Locator
	events     EventPublisher
	policy     config.Policy
	log        *zap.Logger
}

type noopLocator struct{}

func (noopLocator) Locate(context.Context, string) string { return "" }

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, events.Event) {}

func New(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Geo == nil {
		d.Geo = noopLocator{}
	}
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	p := d.Policy
	return &Service{
		store:     d.Store,
		threads:   thread.NewManager(d.Store, p.MaxDepth, thread.WithLogger(log.Named("thread"))),
		reactions: reaction.NewEngine(d.Store, log.Named("reaction")),
		history:   history.NewService(d.Store, p.ModeratorRoles, log.Named("history")),
		moderation: moderation.NewService(d.Store, moderation.Config{
			ModeratorRoles: p.ModeratorRoles,
			MaxBatchSize:   p.MaxBatchSize,
		}, log.Named("moderation")),
		text:   d.Text,
		geo:    d.Geo,
		events: d.Events,
		policy: p,
		log:    log,
	}
}

type CreateInput struct {
	Slug     string
	ParentID string
	Text     string
	ClientIP string
}

func (s *Service) Create(ctx context.Context, caller domain.Caller, in CreateInput) (CommentView, error) {
	if !caller.Authenticated() {
		return CommentView{}, domain.ErrUnauthenticated
	}
	slug := strings.TrimSpace(in.Slug)
	parentID := strings.TrimSpace(in.ParentID)
	if parentID == "" {
		if err := validateSlug(slug); err != nil {
			return CommentView{}, err
		}
	}
	text, err := s.cleanText(in.Text)
	if err != nil {
		return CommentView{}, err
	}

	c, err := s.threads.Create(ctx, thread.NewComment{
		Slug:     slug,
		AuthorID: caller.UserID,
		ParentID: parentID,
		Text:     text,
		Locate: func(ctx context.Context) string {
			return s.geo.Locate(ctx, in.ClientIP)
		},
	})
	if err != nil {
		return CommentView{}, err
	}
	s.log.Info("comment created",
		zap.String("comment_id", c.ID), zap.String("slug", c.Slug), zap.Int("depth", c.Depth))
	s.events.Publish(ctx, events.SubjectCreated, events.Event{
		CommentID: c.ID, Slug: c.Slug, ParentID: c.ParentID, ActorID: caller.UserID,
	})
	return s.view(c, domain.JudgementNone), nil
}

func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (CommentView, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return CommentView{}, err
	}
	return s.view(c, s.judgementOf(ctx, caller, c.ID)), nil
}

func (s *Service) ListTopLevel(ctx context.Context, caller domain.Caller, slug string, limit int, cursor string) (PageView, error) {
	slug = strings.TrimSpace(slug)
	if err := validateSlug(slug); err != nil {
		return PageView{}, err
	}
	size, cursor, err := s.pageParams(limit, cursor)
	if err != nil {
		return PageView{}, err
	}
	page, err := store.ListTopLevel(ctx, s.store, slug, size, cursor)
	if err != nil {
		return PageView{}, err
	}
	return s.pageView(ctx, caller, page), nil
}

func (s *Service) ListReplies(ctx context.Context, caller domain.Caller, parentID string, limit int, cursor string) (PageView, error) {
	size, cursor, err := s.pageParams(limit, cursor)
	if err != nil {
		return PageView{}, err
	}
	if _, err := s.store.Get(ctx, parentID); err != nil {
		if domain.IsTerminal(err) {
			return PageView{}, domain.NotFound("parent comment")
		}
		return PageView{}, err
	}
	page, err := store.ListReplies(ctx, s.store, parentID, size, cursor)
	if err != nil {
		return PageView{}, err
	}
	return s.pageView(ctx, caller, page), nil
}

func (s *Service) Edit(ctx context.Context, caller domain.Caller, id, text string) (CommentView, error) {
	if !caller.Authenticated() {
		return CommentView{}, domain.ErrUnauthenticated
	}
	clean, err := s.cleanText(text)
	if err != nil {
		return CommentView{}, err
	}
	c, err := s.history.Edit(ctx, caller, id, clean)
	if err != nil {
		return CommentView{}, err
	}
	s.events.Publish(ctx, events.SubjectEdited, events.Event{CommentID: c.ID, Slug: c.Slug, ActorID: caller.UserID})
	return s.view(c, s.judgementOf(ctx, caller, c.ID)), nil
}

func (s *Service) History(ctx context.Context, caller domain.Caller, id string) ([]history.Entry, error) {
	return s.history.History(ctx, caller, id)
}

// Diff compares two revisions by index; negative indexes pick the previous
// and current revisions.
func (s *Service) Diff(ctx context.Context, caller domain.Caller, id string, from, to int) (DiffView, error) {
	lines, err := s.history.DiffRevisions(ctx, caller, id, from, to)
	if err != nil {
		return DiffView{}, err
	}
	if lines == nil {
		lines = []history.Line{}
	}
	return DiffView{CommentID: id, Lines: lines}, nil
}

func (s *Service) React(ctx context.Context, caller domain.Caller, id, kind string) (ReactionView, error) {
	if !caller.Authenticated() {
		return ReactionView{}, domain.ErrUnauthenticated
	}
	action, err := domain.ParseJudgement(kind)
	if err != nil {
		return ReactionView{}, err
	}
	r, err := s.reactions.React(ctx, caller, id, action)
	if err != nil {
		return ReactionView{}, err
	}
	s.events.Publish(ctx, events.SubjectReacted, events.Event{
		CommentID: r.CommentID, ActorID: caller.UserID, Judgement: string(r.Judgement),
	})
	return ReactionView{
		CommentID: r.CommentID,
		Judgement: string(r.Judgement),
		Likes:     r.Likes,
		Dislikes:  r.Dislikes,
		Score:     r.NetScore(),
	}, nil
}

func (s *Service) Delete(ctx context.Context, caller domain.Caller, id string) (CommentView, error) {
	c, err := s.moderation.SoftDelete(ctx, caller, id)
	if err != nil {
		return CommentView{}, err
	}
	s.events.Publish(ctx, events.SubjectDeleted, events.Event{CommentID: c.ID, Slug: c.Slug, ActorID: caller.UserID})
	return s.view(c, s.judgementOf(ctx, caller, c.ID)), nil
}

func (s *Service) BulkDelete(ctx context.Context, caller domain.Caller, ids []string) (int, error) {
	deleted, err := s.moderation.BulkDelete(ctx, caller, ids)
	if err != nil {
		return 0, err
	}
	for _, c := range deleted {
		s.events.Publish(ctx, events.SubjectDeleted, events.Event{CommentID: c.ID, Slug: c.Slug, ActorID: caller.UserID})
	}
	return len(deleted), nil
}

func (s *Service) BulkUnreact(ctx context.Context, caller domain.Caller, ids []string, kind string) (int, error) {
	if !caller.Authenticated() {
		return 0, domain.ErrUnauthenticated
	}
	j, err := domain.ParseJudgement(kind)
	if err != nil {
		return 0, err
	}
	return s.moderation.BulkUnreact(ctx, caller, ids, j)
}

func (s *Service) Report(ctx context.Context, caller domain.Caller, id, reason string) (ReportView, error) {
	c, err := s.moderation.Report(ctx, caller, id, reason)
	if err != nil {
		return ReportView{}, err
	}
	s.log.Info("comment reported", zap.String("comment_id", c.ID), zap.String("report_id", c.ReportTarget))
	s.events.Publish(ctx, events.SubjectReported, events.Event{
		CommentID: c.ID, Slug: c.Slug, ActorID: caller.UserID, Reason: strings.TrimSpace(reason),
	})
	return ReportView{CommentID: c.ID, ReportID: c.ReportTarget}, nil
}

// Ready reports whether the backing store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) cleanText(raw string) (string, error) {
	text := s.text.Sanitize(raw)
	if text == "" {
		return "", domain.Invalid("text", "must not be empty")
	}
	if utf8.RuneCountInString(text) > s.policy.MaxTextLength {
		return "", domain.Invalid("text", "too long")
	}
	return text, nil
}

func validateSlug(slug string) error {
	if slug == "" {
		return domain.Invalid("slug", "required")
	}
	if len(slug) > maxSlugLength {
		return domain.Invalid("slug", "too long")
	}
	return nil
}

// pageParams clamps the page size and rejects cursors that are not comment
// ids. A well-formed cursor for a vanished comment is fine.
func (s *Service) pageParams(limit int, cursor string) (int, string, error) {
	switch {
	case limit <= 0:
		limit = s.policy.DefaultPageSize
	case limit > s.policy.MaxPageSize:
		limit = s.policy.MaxPageSize
	}
	cursor = strings.TrimSpace(cursor)
	if cursor != "" {
		id, err := uuid.Parse(cursor)
		if err != nil {
			return 0, "", domain.Invalid("cursor", "malformed")
		}
		cursor = id.String()
	}
	return limit, cursor, nil
}

func (s *Service) pageView(ctx context.Context, caller domain.Caller, page pager.Page[domain.Comment]) PageView {
	var judged map[string]domain.Judgement
	if caller.Authenticated() && len(page.Items) > 0 {
		ids := make([]string, len(page.Items))
		for i, c := range page.Items {
			ids[i] = c.ID
		}
		var err error
		judged, err = s.store.JudgementsOf(ctx, caller.UserID, ids)
		if err != nil {
			s.log.Warn("load viewer judgements", zap.Error(err))
		}
	}
	out := PageView{Items: make([]CommentView, 0, len(page.Items)), NextCursor: page.NextCursor}
	for _, c := range page.Items {
		out.Items = append(out.Items, s.view(c, judged[c.ID]))
	}
	return out
}

func (s *Service) judgementOf(ctx context.Context, caller domain.Caller, id string) domain.Judgement {
	if !caller.Authenticated() {
		return domain.JudgementNone
	}
	j, err := s.store.JudgementOf(ctx, id, caller.UserID)
	if err != nil {
		s.log.Warn("load viewer judgement", zap.String("comment_id", id), zap.Error(err))
		return domain.JudgementNone
	}
	return j
}
