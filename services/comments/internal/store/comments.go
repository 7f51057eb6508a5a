// Package store persists comments, their revisions and the judgement ledger.
//
// Every mutation is a single atomic operation against the backend: a
// conditional update, an append, or a short transaction of such statements.
// No method reads a whole record, changes it in memory and writes it back.
package store

import (
	"context"
	"time"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/pager"
)

// Filter selects either the top-level comments of a slug or the direct
// replies of a parent.
type Filter struct {
	Slug     string
	ParentID string
}

type CommentStore interface {
	// Insert stores c with c.Latest as its first revision. When c.ParentID is
	// set, the parent's child list gains c.ID in the same transaction; a
	// missing parent fails with domain.ErrNotFound and nothing is written.
	Insert(ctx context.Context, c domain.Comment) (domain.Comment, error)
	Get(ctx context.Context, id string) (domain.Comment, error)
	Scan(ctx context.Context, q pager.Query[Filter]) ([]domain.Comment, error)

	// AppendRevision makes text the latest revision if authorID wrote the
	// comment and it is not deleted.
	AppendRevision(ctx context.Context, id, authorID, text string, at time.Time) (domain.Comment, error)
	// Revisions returns every revision, oldest first.
	Revisions(ctx context.Context, id string) ([]domain.Revision, error)

	JudgementOf(ctx context.Context, commentID, userID string) (domain.Judgement, error)
	JudgementsOf(ctx context.Context, userID string, commentIDs []string) (map[string]domain.Judgement, error)
	// ApplyJudgement replaces the user's judgement with next(current) and
	// adjusts the counters by domain.CountDelta, all while holding the
	// comment, so requests from one user apply one after another. Deleted
	// comments are domain.ErrNotFound.
	ApplyJudgement(ctx context.Context, commentID, userID string, next func(current domain.Judgement) domain.Judgement, at time.Time) (domain.Comment, domain.Judgement, error)
	// RemoveJudgements drops the user's judgements equal to kind across ids
	// and returns how many were removed.
	RemoveJudgements(ctx context.Context, userID string, ids []string, kind domain.Judgement, at time.Time) (int, error)

	// MarkDeleted fails with domain.ErrNotFound if the comment is missing or
	// already deleted.
	MarkDeleted(ctx context.Context, id string, at time.Time) (domain.Comment, error)
	// MarkDeletedOwned deletes every id or none: if any id is missing or not
	// written by authorID it fails with domain.ErrForbidden. It returns the
	// comments this call deleted; ones already tombstoned are left out.
	MarkDeletedOwned(ctx context.Context, ids []string, authorID string, at time.Time) ([]domain.Comment, error)
	SetReportTarget(ctx context.Context, id, target string, at time.Time) (domain.Comment, error)

	Ping(ctx context.Context) error
}

func ListTopLevel(ctx context.Context, s CommentStore, slug string, pageSize int, cursor string) (pager.Page[domain.Comment], error) {
	return pager.Fetch[domain.Comment, Filter](ctx, s, Filter{Slug: slug}, pageSize, cursor)
}

func ListReplies(ctx context.Context, s CommentStore, parentID string, pageSize int, cursor string) (pager.Page[domain.Comment], error) {
	return pager.Fetch[domain.Comment, Filter](ctx, s, Filter{ParentID: parentID}, pageSize, cursor)
}

func matches(f Filter, c domain.Comment) bool {
	if f.ParentID != "" {
		return c.ParentID == f.ParentID
	}
	return c.ParentID == "" && c.Slug == f.Slug
}
