package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_KeepsBoundedHistoryAndForwards(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	buf := &bytes.Buffer{}
	next := Log{Logger: slog.New(slog.NewTextHandler(buf, nil))}
	r := NewRecorder(2, next)

	// --- Act ---
	r.Notify("one", "1")
	r.Notify("two", "2")
	r.Notify("three", "3")
	r.Toast("app", LevelWarning, "Failed to kill process")
	r.Reveal("app", "http://localhost:7860")

	// --- Assert ---
	notes := r.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, "two", notes[0].Title)
	assert.Equal(t, "three", notes[1].Title)

	toasts := r.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, LevelWarning, toasts[0].Level)

	require.Len(t, r.Reveals(), 1)

	logs := buf.String()
	assert.Contains(t, logs, "three")
	assert.Contains(t, logs, "level=WARN")
	assert.Contains(t, logs, "http://localhost:7860")
}

func TestRecorder_WithoutNext(t *testing.T) {
	t.Parallel()
	r := NewRecorder(0, nil)

	r.Notify("t", "b")
	r.Toast("a", LevelInfo, "m")

	assert.Len(t, r.Notifications(), 1)
	assert.Len(t, r.Toasts(), 1)
}
