package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff_SetSemantics(t *testing.T) {
	got := Diff("a\nb\nc", "a\nc\nd")
	assert.Equal(t, []Line{
		{Removed, "b"},
		{Unchanged, "a"},
		{Unchanged, "c"},
		{Added, "d"},
	}, got)
}

func TestDiff_MovedLineIsUnchanged(t *testing.T) {
	got := Diff("x\ny", "y\nx")
	assert.Equal(t, []Line{{Unchanged, "y"}, {Unchanged, "x"}}, got)
}

func TestDiff_DuplicatesNotCounted(t *testing.T) {
	got := Diff("a\na", "a")
	assert.Equal(t, []Line{{Unchanged, "a"}}, got)
}

func TestDiff_ModifiedLineIsRemovedPlusAdded(t *testing.T) {
	got := Diff("hello world", "hello, world")
	assert.Equal(t, []Line{{Removed, "hello world"}, {Added, "hello, world"}}, got)
}

func TestDiff_EmptySides(t *testing.T) {
	assert.Equal(t, []Line{{Added, "new"}}, Diff("", "new"))
	assert.Equal(t, []Line{{Removed, "old"}}, Diff("old", ""))
	assert.Empty(t, Diff("", ""))
}

func TestDiff_CRLF(t *testing.T) {
	got := Diff("a\r\nb", "a\nb")
	assert.Equal(t, []Line{{Unchanged, "a"}, {Unchanged, "b"}}, got)
}
