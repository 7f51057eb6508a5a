// Package reaction implements the like/dislike toggle.
//
// Each (comment, user) pair is a three-state machine: none, liked, disliked.
// Repeating the current action returns to none; the opposite action switches
// sides. The store reads the user's ledger entry and applies the transition
// together with the counter increments in one atomic step, so concurrent
// requests from the same user resolve to one of the serial outcomes.
package reaction

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/store"
)

// Next is the transition table.
func Next(current, action domain.Judgement) domain.Judgement {
	if current == action {
		return domain.JudgementNone
	}
	return action
}

type Result struct {
	CommentID string
	Judgement domain.Judgement
	Likes     int64
	Dislikes  int64
}

func (r Result) NetScore() int64 { return r.Likes - r.Dislikes }

type Engine struct {
	store store.CommentStore
	log   *zap.Logger
	now   func() time.Time
}

func NewEngine(s store.CommentStore, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: s, log: log, now: time.Now}
}

// React applies action for caller. Ownership of the comment is irrelevant.
func (e *Engine) React(ctx context.Context, caller domain.Caller, commentID string, action domain.Judgement) (Result, error) {
	if !caller.Authenticated() {
		return Result{}, domain.ErrUnauthenticated
	}
	if action != domain.Like && action != domain.Dislike {
		return Result{}, domain.Invalid("kind", "must be like or dislike")
	}

	c, next, err := e.store.ApplyJudgement(ctx, commentID, caller.UserID,
		func(current domain.Judgement) domain.Judgement { return Next(current, action) },
		e.now().UTC())
	if err != nil {
		return Result{}, err
	}
	e.log.Debug("reaction applied",
		zap.String("comment_id", commentID), zap.String("user_id", caller.UserID), zap.String("judgement", string(next)))
	return Result{CommentID: c.ID, Judgement: next, Likes: c.Likes, Dislikes: c.Dislikes}, nil
}
