// Package moderation handles soft delete, batch operations and reports.
//
// Deletion tombstones a comment in place. Children keep their parent link
// and stay listable, and the revision trail is kept intact.
package moderation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
)

const maxReasonLength = 500

type Config struct {
	ModeratorRoles []string
	MaxBatchSize   int
}

type Service struct {
	store store.CommentStore
	cfg   Config
	log   *zap.Logger
	now   func() time.Time
}

func NewService(s store.CommentStore, cfg Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	return &Service{store: s, cfg: cfg, log: log, now: time.Now}
}

func (s *Service) SoftDelete(ctx context.Context, caller domain.Caller, commentID string) (domain.Comment, error) {
	if !caller.Authenticated() {
		return domain.Comment{}, domain.ErrUnauthenticated
	}
	c, err := s.store.Get(ctx, commentID)
	if err != nil {
		return domain.Comment{}, err
	}
	moderator := caller.HasAnyRole(s.cfg.ModeratorRoles)
	if c.AuthorID != caller.UserID && !moderator {
		return domain.Comment{}, domain.Forbidden("you do not own this comment")
	}
	deleted, err := s.store.MarkDeleted(ctx, commentID, s.now().UTC())
	if err != nil {
		return domain.Comment{}, err
	}
	if c.AuthorID != caller.UserID {
		s.log.Info("comment removed by moderator",
			zap.String("comment_id", commentID), zap.String("moderator_id", caller.UserID))
	}
	return deleted, nil
}

// BulkDelete deletes all of the caller's listed comments or none of them.
// It returns the comments that were deleted by this call.
func (s *Service) BulkDelete(ctx context.Context, caller domain.Caller, ids []string) ([]domain.Comment, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	ids, err := s.batch(ids)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.MarkDeletedOwned(ctx, ids, caller.UserID, s.now().UTC())
	if err != nil {
		return nil, err
	}
	s.log.Debug("bulk delete", zap.String("user_id", caller.UserID), zap.Int("requested", len(ids)), zap.Int("deleted", len(deleted)))
	return deleted, nil
}

// BulkUnreact removes the caller's judgements of the given kind. Comments
// without such a judgement are skipped.
func (s *Service) BulkUnreact(ctx context.Context, caller domain.Caller, ids []string, kind domain.Judgement) (int, error) {
	if !caller.Authenticated() {
		return 0, domain.ErrUnauthenticated
	}
	if kind != domain.Like && kind != domain.Dislike {
		return 0, domain.Invalid("kind", "must be like or dislike")
	}
	ids, err := s.batch(ids)
	if err != nil {
		return 0, err
	}
	return s.store.RemoveJudgements(ctx, caller.UserID, ids, kind, s.now().UTC())
}

// Report flags a comment for the external moderation queue and returns the
// comment with its new report reference.
func (s *Service) Report(ctx context.Context, caller domain.Caller, commentID, reason string) (domain.Comment, error) {
	if !caller.Authenticated() {
		return domain.Comment{}, domain.ErrUnauthenticated
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Comment{}, domain.Invalid("reason", "must not be empty")
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return domain.Comment{}, domain.Invalid("reason", "too long")
	}
	ref, err := uuid.NewRandom()
	if err != nil {
		return domain.Comment{}, err
	}
	return s.store.SetReportTarget(ctx, commentID, "report:"+ref.String(), s.now().UTC())
}

func (s *Service) batch(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, domain.Invalid("ids", "must not be empty")
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, domain.Invalid("ids", "must not contain empty ids")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > s.cfg.MaxBatchSize {
		return nil, domain.Invalid("ids", "too many ids")
	}
	return out, nil
}
