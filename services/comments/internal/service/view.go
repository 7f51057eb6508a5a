package service

import (
	"time"

	"github.com/quillnote/notes-platform/services/comments/internal/domain"
	"github.com/quillnote/notes-platform/services/comments/internal/history"
)

type CommentView struct {
	ID              string    `json:"id"`
	Slug            string    `json:"slug"`
	AuthorID        string    `json:"author_id"`
	ParentID        string    `json:"parent_id,omitempty"`
	Depth           int       `json:"depth"`
	ChildIDs        []string  `json:"child_ids"`
	HasReplies      bool      `json:"has_replies"`
	Content         string    `json:"content"`
	ContentHTML     string    `json:"content_html"`
	RevisionCount   int       `json:"revision_count"`
	Edited          bool      `json:"edited"`
	Likes           int64     `json:"likes"`
	Dislikes        int64     `json:"dislikes"`
	Score           int64     `json:"score"`
	ViewerJudgement string    `json:"viewer_judgement,omitempty"`
	Deleted         bool      `json:"deleted"`
	Location        string    `json:"location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type PageView struct {
	Items      []CommentView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type ReactionView struct {
	CommentID string `json:"comment_id"`
	Judgement string `json:"judgement,omitempty"`
	Likes     int64  `json:"likes"`
	Dislikes  int64  `json:"dislikes"`
	Score     int64  `json:"score"`
}

type DiffView struct {
	CommentID string         `json:"comment_id"`
	Lines     []history.Line `json:"lines"`
}

type ReportView struct {
	CommentID string `json:"comment_id"`
	ReportID  string `json:"report_id"`
}

func (s *Service) view(c domain.Comment, j domain.Judgement) CommentView {
	v := CommentView{
		ID:              c.ID,
		Slug:            c.Slug,
		AuthorID:        c.AuthorID,
		ParentID:        c.ParentID,
		Depth:           c.Depth,
		ChildIDs:        c.ChildIDs,
		HasReplies:      c.HasReplies(),
		Content:         c.DisplayText(),
		RevisionCount:   c.RevisionCount,
		Edited:          c.Edited(),
		Likes:           c.Likes,
		Dislikes:        c.Dislikes,
		Score:           c.NetScore(),
		ViewerJudgement: string(j),
		Deleted:         c.Deleted,
		Location:        c.Location,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
	if v.ChildIDs == nil {
		v.ChildIDs = []string{}
	}
	if !c.Deleted {
		v.ContentHTML = s.text.Render(c.Latest.Text)
	}
	return v
}
