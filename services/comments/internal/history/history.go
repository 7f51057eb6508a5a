// Package history appends revisions on edit and serves the revision trail.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
)

// Entry is a revision as shown to readers, newest first.
type Entry struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Current   bool      `json:"current"`
}

type Service struct {
	store          store.CommentStore
	moderatorRoles []string
	log            *zap.Logger
	now            func() time.Time
}

func NewService(s store.CommentStore, moderatorRoles []string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, moderatorRoles: moderatorRoles, log: log, now: time.Now}
}

// Edit appends text as the newest revision. Only the author may edit, and
// deleted comments are treated as gone.
func (s *Service) Edit(ctx context.Context, caller domain.Caller, commentID, text string) (domain.Comment, error) {
	if !caller.Authenticated() {
		return domain.Comment{}, domain.ErrUnauthenticated
	}
	c, err := s.store.AppendRevision(ctx, commentID, caller.UserID, text, s.now().UTC())
	if err != nil {
		return domain.Comment{}, err
	}
	s.log.Debug("comment edited", zap.String("comment_id", c.ID), zap.Int("revisions", c.RevisionCount))
	return c, nil
}

// History lists revisions newest first. The trail of a deleted comment is
// only visible to moderators.
func (s *Service) History(ctx context.Context, caller domain.Caller, commentID string) ([]Entry, error) {
	revs, err := s.revisions(ctx, caller, commentID)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(revs))
	for i := len(revs) - 1; i >= 0; i-- {
		out = append(out, Entry{
			Index:     i,
			Text:      revs[i].Text,
			CreatedAt: revs[i].CreatedAt,
			Current:   i == len(revs)-1,
		})
	}
	return out, nil
}

// Latest stands in for a revision index left to its default: the current
// revision for to, the one before to for from.
const Latest = -1

// DiffRevisions diffs two revision indexes (0 is the original). Either index
// may be Latest; any other negative index is rejected.
func (s *Service) DiffRevisions(ctx context.Context, caller domain.Caller, commentID string, from, to int) ([]Line, error) {
	if to < Latest {
		return nil, domain.Invalid("to", "revision out of range")
	}
	if from < Latest {
		return nil, domain.Invalid("from", "revision out of range")
	}
	revs, err := s.revisions(ctx, caller, commentID)
	if err != nil {
		return nil, err
	}
	if to == Latest {
		to = len(revs) - 1
	}
	if from == Latest {
		from = to - 1
		if from < 0 {
			from = 0
		}
	}
	if to >= len(revs) {
		return nil, domain.Invalid("to", "revision out of range")
	}
	if from >= len(revs) {
		return nil, domain.Invalid("from", "revision out of range")
	}
	return Diff(revs[from].Text, revs[to].Text), nil
}

func (s *Service) revisions(ctx context.Context, caller domain.Caller, commentID string) ([]domain.Revision, error) {
	c, err := s.store.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.Deleted && !caller.HasAnyRole(s.moderatorRoles) {
		return nil, domain.NotFound("comment")
	}
	return s.store.Revisions(ctx, commentID)
}
