package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/pager"
)

type memRecord struct {
	comment    domain.Comment
	revisions  []domain.Revision
	judgements map[string]domain.Judgement
}

// InMemoryCommentStore is a CommentStore for development and tests. A single
// mutex makes every method one critical section.
type InMemoryCommentStore struct {
	mu       sync.RWMutex
	comments map[string]*memRecord
}

func NewInMemoryCommentStore() *InMemoryCommentStore {
	return &InMemoryCommentStore{comments: make(map[string]*memRecord)}
}

// snapshot copies the record's comment so callers never alias store state.
func (r *memRecord) snapshot() domain.Comment {
	c := r.comment
	c.ChildIDs = append([]string(nil), r.comment.ChildIDs...)
	if r.comment.DeletedAt != nil {
		at := *r.comment.DeletedAt
		c.DeletedAt = &at
	}
	return c
}

func (s *InMemoryCommentStore) Insert(_ context.Context, c domain.Comment) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.comments[c.ID]; dup {
		return domain.Comment{}, fmt.Errorf("comment %s already exists", c.ID)
	}
	if c.ParentID != "" {
		parent, ok := s.comments[c.ParentID]
		if !ok {
			return domain.Comment{}, domain.NotFound("parent comment")
		}
		parent.comment.ChildIDs = append(parent.comment.ChildIDs, c.ID)
	}

	c.ChildIDs = nil
	c.RevisionCount = 1
	c.Likes, c.Dislikes = 0, 0
	c.Deleted, c.DeletedAt = false, nil
	rec := &memRecord{
		comment:    c,
		revisions:  []domain.Revision{c.Latest},
		judgements: make(map[string]domain.Judgement),
	}
	s.comments[c.ID] = rec
	return rec.snapshot(), nil
}

func (s *InMemoryCommentStore) Get(_ context.Context, id string) (domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, domain.NotFound("comment")
	}
	return rec.snapshot(), nil
}

func (s *InMemoryCommentStore) Scan(_ context.Context, q pager.Query[Filter]) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var match []domain.Comment
	for _, rec := range s.comments {
		if matches(q.Filter, rec.comment) {
			match = append(match, rec.snapshot())
		}
	}
	return pager.Window(match, q.Before, q.Limit), nil
}

func (s *InMemoryCommentStore) AppendRevision(_ context.Context, id, authorID, text string, at time.Time) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, domain.NotFound("comment")
	}
	if rec.comment.AuthorID != authorID {
		return domain.Comment{}, domain.Forbidden("only the author can edit a comment")
	}
	if rec.comment.Deleted {
		return domain.Comment{}, domain.NotFound("comment")
	}
	rev := domain.Revision{Text: text, CreatedAt: at}
	rec.revisions = append(rec.revisions, rev)
	rec.comment.Latest = rev
	rec.comment.RevisionCount = len(rec.revisions)
	rec.comment.UpdatedAt = at
	return rec.snapshot(), nil
}

func (s *InMemoryCommentStore) Revisions(_ context.Context, id string) ([]domain.Revision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.comments[id]
	if !ok {
		return nil, domain.NotFound("comment")
	}
	return append([]domain.Revision(nil), rec.revisions...), nil
}

func (s *InMemoryCommentStore) JudgementOf(_ context.Context, commentID, userID string) (domain.Judgement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.comments[commentID]
	if !ok {
		return domain.JudgementNone, domain.NotFound("comment")
	}
	return rec.judgements[userID], nil
}

func (s *InMemoryCommentStore) JudgementsOf(_ context.Context, userID string, commentIDs []string) (map[string]domain.Judgement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Judgement)
	for _, id := range commentIDs {
		if rec, ok := s.comments[id]; ok {
			if j := rec.judgements[userID]; j != domain.JudgementNone {
				out[id] = j
			}
		}
	}
	return out, nil
}

func (s *InMemoryCommentStore) ApplyJudgement(_ context.Context, commentID, userID string, next func(domain.Judgement) domain.Judgement, at time.Time) (domain.Comment, domain.Judgement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.comments[commentID]
	if !ok || rec.comment.Deleted {
		return domain.Comment{}, domain.JudgementNone, domain.NotFound("comment")
	}
	from := rec.judgements[userID]
	to := next(from)
	if to == domain.JudgementNone {
		delete(rec.judgements, userID)
	} else {
		rec.judgements[userID] = to
	}
	dl, dd := domain.CountDelta(from, to)
	rec.comment.Likes += dl
	rec.comment.Dislikes += dd
	rec.comment.UpdatedAt = at
	return rec.snapshot(), to, nil
}

func (s *InMemoryCommentStore) RemoveJudgements(_ context.Context, userID string, ids []string, kind domain.Judgement, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, id := range ids {
		rec, ok := s.comments[id]
		if !ok || rec.judgements[userID] != kind {
			continue
		}
		delete(rec.judgements, userID)
		dl, dd := domain.CountDelta(kind, domain.JudgementNone)
		rec.comment.Likes += dl
		rec.comment.Dislikes += dd
		rec.comment.UpdatedAt = at
		removed++
	}
	return removed, nil
}

func (s *InMemoryCommentStore) MarkDeleted(_ context.Context, id string, at time.Time) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.comments[id]
	if !ok || rec.comment.Deleted {
		return domain.Comment{}, domain.NotFound("comment")
	}
	markDeleted(rec, at)
	return rec.snapshot(), nil
}

func (s *InMemoryCommentStore) MarkDeletedOwned(_ context.Context, ids []string, authorID string, at time.Time) ([]domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		rec, ok := s.comments[id]
		if !ok || rec.comment.AuthorID != authorID {
			return nil, domain.Forbidden("you do not own these comments")
		}
	}
	var deleted []domain.Comment
	for _, id := range ids {
		if rec := s.comments[id]; !rec.comment.Deleted {
			markDeleted(rec, at)
			deleted = append(deleted, rec.snapshot())
		}
	}
	return deleted, nil
}

func markDeleted(rec *memRecord, at time.Time) {
	rec.comment.Deleted = true
	rec.comment.DeletedAt = &at
	rec.comment.UpdatedAt = at
}

func (s *InMemoryCommentStore) SetReportTarget(_ context.Context, id, target string, at time.Time) (domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.comments[id]
	if !ok {
		return domain.Comment{}, domain.NotFound("comment")
	}
	rec.comment.ReportTarget = target
	rec.comment.UpdatedAt = at
	return rec.snapshot(), nil
}

func (s *InMemoryCommentStore) Ping(context.Context) error { return nil }
