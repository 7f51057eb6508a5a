package thread

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
)

func TestCreate_TopLevelAndReply(t *testing.T) {
	s := store.NewInMemoryCommentStore()
	m := NewManager(s, 4)
	ctx := context.Background()

	a, err := m.Create(ctx, NewComment{Slug: "post/1", AuthorID: "u1", Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, a.Depth)
	assert.Equal(t, 1, a.RevisionCount)
	assert.True(t, a.IsTopLevel())

	b, err := m.Create(ctx, NewComment{AuthorID: "u2", ParentID: a.ID, Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Depth)
	assert.Equal(t, "post/1", b.Slug)

	parent, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, parent.ChildIDs)
}

func TestCreate_DepthCeiling(t *testing.T) {
	s := store.NewInMemoryCommentStore()
	m := NewManager(s, 2)
	ctx := context.Background()

	c, err := m.Create(ctx, NewComment{Slug: "p", AuthorID: "u", Text: "0"})
	require.NoError(t, err)
	for depth := 1; depth <= 2; depth++ {
		c, err = m.Create(ctx, NewComment{AuthorID: "u", ParentID: c.ID, Text: "reply"})
		require.NoError(t, err)
		assert.Equal(t, depth, c.Depth)
	}

	_, err = m.Create(ctx, NewComment{AuthorID: "u", ParentID: c.ID, Text: "too deep"})
	assert.ErrorIs(t, err, domain.ErrDepthLimitExceeded)

	parent, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, parent.ChildIDs, "rejected reply must not be linked")
}

func TestCreate_LocatesOnlyAcceptedComments(t *testing.T) {
	s := store.NewInMemoryCommentStore()
	m := NewManager(s, 1)
	ctx := context.Background()
	lookups := 0
	locate := func(context.Context) string {
		lookups++
		return "Oslo, Norway"
	}

	root, err := m.Create(ctx, NewComment{Slug: "p", AuthorID: "u", Text: "0", Locate: locate})
	require.NoError(t, err)
	assert.Equal(t, "Oslo, Norway", root.Location)
	reply, err := m.Create(ctx, NewComment{AuthorID: "u", ParentID: root.ID, Text: "1", Locate: locate})
	require.NoError(t, err)
	require.Equal(t, 2, lookups)

	_, err = m.Create(ctx, NewComment{AuthorID: "u", ParentID: reply.ID, Text: "2", Locate: locate})
	assert.ErrorIs(t, err, domain.ErrDepthLimitExceeded)
	_, err = m.Create(ctx, NewComment{AuthorID: "u", ParentID: "ghost", Text: "3", Locate: locate})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, lookups, "rejected replies must not trigger a lookup")
}

func TestCreate_MissingParent(t *testing.T) {
	m := NewManager(store.NewInMemoryCommentStore(), 4)
	_, err := m.Create(context.Background(), NewComment{AuthorID: "u", ParentID: "ghost", Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Contains(t, err.Error(), "parent comment")
}

func TestCreate_ReplySlugMismatch(t *testing.T) {
	m := NewManager(store.NewInMemoryCommentStore(), 4)
	ctx := context.Background()
	a, err := m.Create(ctx, NewComment{Slug: "post/1", AuthorID: "u", Text: "a"})
	require.NoError(t, err)

	_, err = m.Create(ctx, NewComment{Slug: "post/2", AuthorID: "u", ParentID: a.ID, Text: "b"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreate_ReplyUnderDeletedParent(t *testing.T) {
	s := store.NewInMemoryCommentStore()
	m := NewManager(s, 4)
	ctx := context.Background()
	a, err := m.Create(ctx, NewComment{Slug: "p", AuthorID: "u", Text: "a"})
	require.NoError(t, err)
	_, err = s.MarkDeleted(ctx, a.ID, a.CreatedAt)
	require.NoError(t, err)

	b, err := m.Create(ctx, NewComment{AuthorID: "v", ParentID: a.ID, Text: "still here"})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Depth)
}

func TestCreate_DepthNeverExceedsCeiling(t *testing.T) {
	s := store.NewInMemoryCommentStore()
	m := NewManager(s, 3)
	ctx := context.Background()

	root, err := m.Create(ctx, NewComment{Slug: "p", AuthorID: "u", Text: "root"})
	require.NoError(t, err)
	frontier := []domain.Comment{root}
	var all []domain.Comment
	all = append(all, root)
	for len(frontier) > 0 {
		next := frontier[0]
		frontier = frontier[1:]
		for i := 0; i < 2; i++ {
			c, err := m.Create(ctx, NewComment{AuthorID: "u", ParentID: next.ID, Text: "r"})
			if errors.Is(err, domain.ErrDepthLimitExceeded) {
				break
			}
			require.NoError(t, err)
			all = append(all, c)
			frontier = append(frontier, c)
		}
	}

	for _, c := range all {
		assert.LessOrEqual(t, c.Depth, 3)
		if c.ParentID == "" {
			assert.Equal(t, 0, c.Depth)
			continue
		}
		p, err := s.Get(ctx, c.ParentID)
		require.NoError(t, err)
		assert.Equal(t, p.Depth+1, c.Depth)
	}
	assert.Len(t, all, 15)
}
