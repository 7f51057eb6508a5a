// Package thread creates comments and enforces the nesting ceiling.
package thread

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
)

type NewComment struct {
	Slug     string
	AuthorID string
	// ParentID is empty for a top-level comment. A reply inherits the
	// parent's slug; a conflicting Slug is rejected.
	ParentID string
	Text     string
	Location string
	// Locate, when set and Location is empty, resolves the location once the
	// parent and depth checks have passed.
	Locate func(context.Context) string
}

type Manager struct {
	store    store.CommentStore
	maxDepth int
	log      *zap.Logger
	now      func() time.Time
	newID    func() (string, error)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

func NewManager(s store.CommentStore, maxDepth int, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		maxDepth: maxDepth,
		log:      zap.NewNop(),
		now:      time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewV7()
			return id.String(), err
		},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) MaxDepth() int { return m.maxDepth }

// Create checks the parent and depth before anything is written.
func (m *Manager) Create(ctx context.Context, in NewComment) (domain.Comment, error) {
	depth := 0
	slug := in.Slug
	if in.ParentID != "" {
		parent, err := m.store.Get(ctx, in.ParentID)
		if err != nil {
			return domain.Comment{}, parentErr(err)
		}
		if slug != "" && slug != parent.Slug {
			return domain.Comment{}, domain.Invalid("slug", "reply must belong to the parent's slug")
		}
		slug = parent.Slug
		depth = parent.Depth + 1
		if depth > m.maxDepth {
			m.log.Debug("reply rejected: depth ceiling",
				zap.String("parent_id", parent.ID), zap.Int("depth", depth))
			return domain.Comment{}, fmt.Errorf("%w: replies may nest at most %d levels", domain.ErrDepthLimitExceeded, m.maxDepth)
		}
	}

	location := in.Location
	if location == "" && in.Locate != nil {
		location = in.Locate(ctx)
	}

	id, err := m.newID()
	if err != nil {
		return domain.Comment{}, fmt.Errorf("generate comment id: %w", err)
	}
	now := m.now().UTC()
	c, err := m.store.Insert(ctx, domain.Comment{
		ID:        id,
		Slug:      slug,
		AuthorID:  in.AuthorID,
		ParentID:  in.ParentID,
		Depth:     depth,
		Latest:    domain.Revision{Text: in.Text, CreatedAt: now},
		Location:  location,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if in.ParentID != "" {
			return domain.Comment{}, parentErr(err)
		}
		return domain.Comment{}, err
	}
	return c, nil
}

func parentErr(err error) error {
	if domain.IsTerminal(err) {
		return domain.NotFound("parent comment")
	}
	return err
}
