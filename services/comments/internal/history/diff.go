package history

import "strings"

type Op string

const (
	Unchanged Op = "unchanged"
	Added     Op = "added"
	Removed   Op = "removed"
)

type Line struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

// Diff compares two texts line by line as sets: a line is removed when no
// identical line exists in newText, added when no identical line exists in
// oldText, unchanged otherwise. There is no alignment, so a moved line shows
// as unchanged and repeated lines are not counted.
//
// Removed lines come first in their old order, then every new line in its
// new order.
func Diff(oldText, newText string) []Line {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	inOld := make(map[string]struct{}, len(oldLines))
	for _, l := range oldLines {
		inOld[l] = struct{}{}
	}
	inNew := make(map[string]struct{}, len(newLines))
	for _, l := range newLines {
		inNew[l] = struct{}{}
	}

	out := make([]Line, 0, len(oldLines)+len(newLines))
	for _, l := range oldLines {
		if _, ok := inNew[l]; !ok {
			out = append(out, Line{Op: Removed, Text: l})
		}
	}
	for _, l := range newLines {
		if _, ok := inOld[l]; ok {
			out = append(out, Line{Op: Unchanged, Text: l})
		} else {
			out = append(out, Line{Op: Added, Text: l})
		}
	}
	return out
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Split(s, "\n")
}
