// Package domain holds the comment data model and the error taxonomy shared
// by every component of the comment service.
package domain

import (
	"strings"
	"time"
)

// Tombstone replaces the display text of a deleted comment. Stored
// revisions keep their original text.
const Tombstone = "[deleted]"

type Revision struct {
	Text      string
	CreatedAt time.Time
}

// Comment is a node of the self-referencing comment tree. Only the latest
// revision travels with the record; the full sequence is loaded on demand.
type Comment struct {
	ID       string
	Slug     string
	AuthorID string
	// ParentID is empty for top-level comments.
	ParentID string
	Depth    int
	ChildIDs []string

	Latest        Revision
	RevisionCount int

	Likes    int64
	Dislikes int64

	Deleted      bool
	DeletedAt    *time.Time
	ReportTarget string
	Location     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key is the pagination key.
func (c Comment) Key() string { return c.ID }

func (c Comment) IsTopLevel() bool { return c.ParentID == "" }

func (c Comment) HasReplies() bool { return len(c.ChildIDs) > 0 }

func (c Comment) NetScore() int64 { return c.Likes - c.Dislikes }

func (c Comment) Edited() bool { return c.RevisionCount > 1 }

// DisplayText is the presentation-facing current text.
func (c Comment) DisplayText() string {
	if c.Deleted {
		return Tombstone
	}
	return c.Latest.Text
}

// Caller is the verified identity a request acts as. The zero value is
// anonymous.
type Caller struct {
	UserID string
	Role   string
}

func (c Caller) Authenticated() bool { return strings.TrimSpace(c.UserID) != "" }

// HasAnyRole compares roles case-insensitively.
func (c Caller) HasAnyRole(roles []string) bool {
	if c.Role == "" {
		return false
	}
	for _, r := range roles {
		if strings.EqualFold(c.Role, r) {
			return true
		}
	}
	return false
}
