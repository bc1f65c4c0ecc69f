package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestFeed_CarriageReturnOverwritesLine(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	n := New(10)

	// --- Act ---
	finalised := n.Feed("Installing\rInstalling deps\n")

	// --- Assert ---
	require.Equal(t, []string{"Installing deps"}, texts(finalised))
	assert.Equal(t, []string{"Installing deps"}, n.Lines())
}

func TestFeed_CarriageReturnBeforeNewlineKeepsContent(t *testing.T) {
	t.Parallel()
	n := New(10)

	n.Feed("done\r\n")

	assert.Equal(t, []string{"done"}, n.Lines())
}

func TestFeed_PartialLineAcrossChunks(t *testing.T) {
	t.Parallel()
	n := New(10)

	first := n.Feed("hello ")
	assert.Empty(t, first, "no newline yet, nothing should be finalised")
	assert.Equal(t, []string{"hello "}, n.Lines(), "the in-progress line is renderable")

	second := n.Feed("world\nnext")
	assert.Equal(t, []string{"hello world"}, texts(second))
	assert.Equal(t, []string{"hello world", "next"}, n.Lines())
	assert.Equal(t, "next", n.Partial())
}

func TestFeed_StripsANSI(t *testing.T) {
	t.Parallel()
	n := New(10)

	n.Feed("\x1b[32mok\x1b[0m \x1b[1mbold\x1b[22m\n")

	assert.Equal(t, []string{"ok bold"}, n.Lines())
}

func TestFeed_EscapeSplitAcrossChunks(t *testing.T) {
	t.Parallel()
	n := New(10)

	n.Feed("red: \x1b[3")
	n.Feed("1mtext\x1b[0m\n")

	assert.Equal(t, []string{"red: text"}, n.Lines())
}

func TestFeed_SpinnerFramesNeverBecomeLines(t *testing.T) {
	t.Parallel()
	n := New(10)

	n.Feed("-\r\\\r|\r/\r")
	assert.Empty(t, n.Lines(), "a spinner frame is not renderable")

	n.Feed("|\n")
	n.Feed("fetched\n")

	assert.Equal(t, []string{"fetched"}, n.Lines())
}

func TestFeed_Backspace(t *testing.T) {
	t.Parallel()
	n := New(10)

	n.Feed("abc\b\bd\n")

	assert.Equal(t, []string{"ad"}, n.Lines())
}

func TestFeed_RetentionCapDropsOldest(t *testing.T) {
	t.Parallel()
	n := New(3)

	n.Feed("1\n2\n3\n4\n5\n")

	assert.Equal(t, []string{"3", "4", "5"}, n.Lines())
}

func TestSince_ReturnsOnlyNewerLines(t *testing.T) {
	t.Parallel()
	n := New(10)
	first := n.Feed("a\nb\n")
	require.Len(t, first, 2)

	n.Feed("c\n")

	assert.Equal(t, []string{"c"}, texts(n.Since(first[1].Seq)))
}

func TestClear_DiscardsPartialAndLines(t *testing.T) {
	t.Parallel()
	n := New(10)
	before := n.Feed("a\nb\npartial")

	n.Clear()

	assert.Empty(t, n.Lines())
	assert.Empty(t, n.Partial())

	after := n.Feed("fresh\n")
	require.Len(t, after, 1)
	assert.Greater(t, after[0].Seq, before[len(before)-1].Seq, "sequence numbers are never reused")
	assert.Equal(t, []string{"fresh"}, n.Lines())
}
