package domain

import "strings"

// Judgement is a user's reaction to a comment. The empty value is neutral.
type Judgement string

const (
	JudgementNone Judgement = ""
	Like          Judgement = "like"
	Dislike       Judgement = "dislike"
)

// ParseJudgement accepts "like" or "dislike" in any case.
func ParseJudgement(s string) (Judgement, error) {
	switch Judgement(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	}
	return JudgementNone, Invalid("kind", "must be like or dislike")
}

// CountDelta is the change to (likes, dislikes) when a user's judgement moves
// from one value to another.
func CountDelta(from, to Judgement) (likes, dislikes int64) {
	switch from {
	case Like:
		likes--
	case Dislike:
		dislikes--
	}
	switch to {
	case Like:
		likes++
	case Dislike:
		dislikes++
	}
	return likes, dislikes
}
