package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("uuid: %v", err)
	}
	return id.String()
}

func insert(t *testing.T, s CommentStore, slug, author, parent, text string) domain.Comment {
	t.Helper()
	depth := 0
	if parent != "" {
		p, err := s.Get(context.Background(), parent)
		if err != nil {
			t.Fatalf("get parent: %v", err)
		}
		depth = p.Depth + 1
	}
	c, err := s.Insert(context.Background(), domain.Comment{
		ID: newID(t), Slug: slug, AuthorID: author, ParentID: parent, Depth: depth,
		Latest: domain.Revision{Text: text, CreatedAt: t0}, CreatedAt: t0, UpdatedAt: t0,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	return c
}

func TestInMemoryCommentStore_InsertAppendsChild(t *testing.T) {
	s := NewInMemoryCommentStore()
	a := insert(t, s, "post/1", "user-a", "", "a")
	if a.Depth != 0 || a.RevisionCount != 1 {
		t.Fatalf("unexpected root: %+v", a)
	}
	b := insert(t, s, "post/1", "user-b", a.ID, "b")
	if b.Depth != 1 {
		t.Fatalf("expected depth 1, got %d", b.Depth)
	}

	parent, _ := s.Get(context.Background(), a.ID)
	if len(parent.ChildIDs) != 1 || parent.ChildIDs[0] != b.ID {
		t.Fatalf("expected child ids [%s], got %v", b.ID, parent.ChildIDs)
	}
}

func TestInMemoryCommentStore_InsertMissingParent(t *testing.T) {
	s := NewInMemoryCommentStore()
	_, err := s.Insert(context.Background(), domain.Comment{ID: newID(t), ParentID: "nope", Slug: "x"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	page, _ := ListTopLevel(context.Background(), s, "x", 10, "")
	if len(page.Items) != 0 {
		t.Fatal("nothing must be written when the parent is missing")
	}
}

func TestInMemoryCommentStore_ConcurrentReplies(t *testing.T) {
	s := NewInMemoryCommentStore()
	root := insert(t, s, "post/1", "user-a", "", "root")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _ := uuid.NewV7()
			_, err := s.Insert(context.Background(), domain.Comment{
				ID: id.String(), Slug: "post/1", AuthorID: fmt.Sprintf("u%d", i), ParentID: root.ID, Depth: 1,
				Latest: domain.Revision{Text: "r"},
			})
			if err != nil {
				t.Errorf("insert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	parent, _ := s.Get(context.Background(), root.ID)
	if len(parent.ChildIDs) != 50 {
		t.Fatalf("expected 50 children, got %d", len(parent.ChildIDs))
	}
}

func TestListTopLevel_AndReplies(t *testing.T) {
	s := NewInMemoryCommentStore()
	ctx := context.Background()
	first := insert(t, s, "post/1", "user-a", "", "first")
	second := insert(t, s, "post/1", "user-a", "", "second")
	insert(t, s, "post/2", "user-a", "", "other slug")
	reply := insert(t, s, "post/1", "user-b", first.ID, "reply")

	page, err := ListTopLevel(ctx, s, "post/1", 1, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != second.ID || page.NextCursor == "" {
		t.Fatalf("unexpected first page: %+v", page)
	}
	page, err = ListTopLevel(ctx, s, "post/1", 1, page.NextCursor)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != first.ID || page.NextCursor != "" {
		t.Fatalf("unexpected second page: %+v", page)
	}

	replies, err := ListReplies(ctx, s, first.ID, 10, "")
	if err != nil {
		t.Fatalf("replies: %v", err)
	}
	if len(replies.Items) != 1 || replies.Items[0].ID != reply.ID {
		t.Fatalf("unexpected replies: %+v", replies.Items)
	}
}

func TestInMemoryCommentStore_AppendRevision(t *testing.T) {
	s := NewInMemoryCommentStore()
	ctx := context.Background()
	c := insert(t, s, "post/1", "user-a", "", "original")

	if _, err := s.AppendRevision(ctx, c.ID, "user-b", "hijack", t0); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := s.AppendRevision(ctx, "missing", "user-a", "x", t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	later := t0.Add(time.Minute)
	edited, err := s.AppendRevision(ctx, c.ID, "user-a", "edited", later)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if edited.RevisionCount != 2 || edited.Latest.Text != "edited" || !edited.UpdatedAt.Equal(later) {
		t.Fatalf("unexpected comment after edit: %+v", edited)
	}
	revs, _ := s.Revisions(ctx, c.ID)
	if len(revs) != 2 || revs[0].Text != "original" || revs[1].Text != "edited" {
		t.Fatalf("unexpected revisions: %+v", revs)
	}

	if _, err := s.MarkDeleted(ctx, c.ID, later); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.AppendRevision(ctx, c.ID, "user-a", "after delete", later); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for deleted comment, got %v", err)
	}
}

func set(j domain.Judgement) func(domain.Judgement) domain.Judgement {
	return func(domain.Judgement) domain.Judgement { return j }
}

func TestInMemoryCommentStore_ApplyJudgement(t *testing.T) {
	s := NewInMemoryCommentStore()
	ctx := context.Background()
	c := insert(t, s, "post/1", "user-a", "", "x")

	got, j, err := s.ApplyJudgement(ctx, c.ID, "u1", set(domain.Like), t0)
	if err != nil || got.Likes != 1 || j != domain.Like {
		t.Fatalf("expected 1 like, got %+v %q (%v)", got, j, err)
	}

	var seen domain.Judgement
	got, _, err = s.ApplyJudgement(ctx, c.ID, "u1", func(current domain.Judgement) domain.Judgement {
		seen = current
		return domain.Dislike
	}, t0)
	if err != nil || got.Likes != 0 || got.Dislikes != 1 {
		t.Fatalf("expected 0/1, got %+v (%v)", got, err)
	}
	if seen != domain.Like {
		t.Fatalf("next must see the stored judgement, got %q", seen)
	}
	if j, _ := s.JudgementOf(ctx, c.ID, "u1"); j != domain.Dislike {
		t.Fatalf("expected dislike, got %q", j)
	}

	if _, err := s.MarkDeleted(ctx, c.ID, t0); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := s.ApplyJudgement(ctx, c.ID, "u1", set(domain.Like), t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on deleted comment, got %v", err)
	}
}

func TestInMemoryCommentStore_ConcurrentJudgements(t *testing.T) {
	s := NewInMemoryCommentStore()
	c := insert(t, s, "post/1", "user-a", "", "x")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := domain.Like
			if i%2 == 1 {
				kind = domain.Dislike
			}
			if _, _, err := s.ApplyJudgement(context.Background(), c.ID, fmt.Sprintf("u%d", i), set(kind), t0); err != nil {
				t.Errorf("apply: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, _ := s.Get(context.Background(), c.ID)
	if got.Likes != 50 || got.Dislikes != 50 {
		t.Fatalf("expected 50/50, got %d/%d", got.Likes, got.Dislikes)
	}
}

func TestInMemoryCommentStore_RemoveJudgements(t *testing.T) {
	s := NewInMemoryCommentStore()
	ctx := context.Background()
	a := insert(t, s, "p", "x", "", "a")
	b := insert(t, s, "p", "x", "", "b")
	_, _, _ = s.ApplyJudgement(ctx, a.ID, "u1", set(domain.Like), t0)
	_, _, _ = s.ApplyJudgement(ctx, b.ID, "u1", set(domain.Dislike), t0)

	n, err := s.RemoveJudgements(ctx, "u1", []string{a.ID, b.ID, "missing"}, domain.Like, t0)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removed, got %d (%v)", n, err)
	}
	n, _ = s.RemoveJudgements(ctx, "u1", []string{a.ID}, domain.Like, t0)
	if n != 0 {
		t.Fatalf("second removal must be a no-op, got %d", n)
	}
	got, _ := s.Get(ctx, b.ID)
	if got.Dislikes != 1 {
		t.Fatal("dislike must be untouched")
	}
}

func TestInMemoryCommentStore_MarkDeletedOwned_AllOrNothing(t *testing.T) {
	s := NewInMemoryCommentStore()
	ctx := context.Background()
	mine := insert(t, s, "p", "user-a", "", "mine")
	theirs := insert(t, s, "p", "user-b", "", "theirs")

	_, err := s.MarkDeletedOwned(ctx, []string{mine.ID, theirs.ID}, "user-a", t0)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	got, _ := s.Get(ctx, mine.ID)
	if got.Deleted {
		t.Fatal("no comment may be deleted when ownership fails")
	}

	deleted, err := s.MarkDeletedOwned(ctx, []string{mine.ID, mine.ID}, "user-a", t0)
	if err != nil || len(deleted) != 1 || deleted[0].ID != mine.ID {
		t.Fatalf("expected mine deleted once, got %v (%v)", deleted, err)
	}

	again, err := s.MarkDeletedOwned(ctx, []string{mine.ID}, "user-a", t0)
	if err != nil || len(again) != 0 {
		t.Fatalf("already deleted comments must not be reported, got %v (%v)", again, err)
	}
}

func TestInMemoryCommentStore_DeleteKeepsChildren(t *testing.T) {
	s := NewInMemoryCommentStore()
	ctx := context.Background()
	root := insert(t, s, "p", "user-a", "", "root")
	child := insert(t, s, "p", "user-b", root.ID, "child")

	deleted, err := s.MarkDeleted(ctx, root.ID, t0)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.Deleted || len(deleted.ChildIDs) != 1 || deleted.Latest.Text != "root" {
		t.Fatalf("unexpected tombstone: %+v", deleted)
	}
	if _, err := s.MarkDeleted(ctx, root.ID, t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found on repeat delete, got %v", err)
	}

	replies, _ := ListReplies(ctx, s, root.ID, 10, "")
	if len(replies.Items) != 1 || replies.Items[0].ID != child.ID || replies.Items[0].Deleted {
		t.Fatalf("child must survive untouched: %+v", replies.Items)
	}
}

func TestInMemoryCommentStore_SnapshotsDoNotAlias(t *testing.T) {
	s := NewInMemoryCommentStore()
	root := insert(t, s, "p", "user-a", "", "root")
	insert(t, s, "p", "user-b", root.ID, "child")

	got, _ := s.Get(context.Background(), root.ID)
	got.ChildIDs[0] = "tampered"
	again, _ := s.Get(context.Background(), root.ID)
	if again.ChildIDs[0] == "tampered" {
		t.Fatal("store state leaked through a returned slice")
	}
}

func TestUniq(t *testing.T) {
	got := uniq([]string{"a", "b", "a", "c", "b"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected %v", got)
	}
}
