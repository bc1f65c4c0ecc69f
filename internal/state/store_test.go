package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_LogsAreKeyedByApp(t *testing.T) {
	t.Parallel()
	s := New(100, nil)

	s.AppendLog("a", "from a\n")
	s.AppendLog("b", "from b\n")

	assert.Equal(t, []string{"from a"}, s.Logs("a"))
	assert.Equal(t, []string{"from b"}, s.Logs("b"))
	assert.Nil(t, s.Logs("missing"))
}

func TestStore_ClearLogsResetsStickyError(t *testing.T) {
	t.Parallel()
	s := New(100, nil)
	s.AppendLog("a", "boom\n")
	s.AppendDeleteLog("a", "removing")
	require.True(t, s.MarkError("a"))
	require.False(t, s.MarkError("a"), "flag is already set")

	s.ClearLogs("a")

	assert.Empty(t, s.Logs("a"))
	assert.Empty(t, s.DeleteLogs("a"))
	assert.False(t, s.HasError("a"))
}

func TestStore_DisconnectKeepsLogsButDropsConnectionState(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	s := New(100, nil)
	s.AppendLog("a", "line\n")
	s.SetDependencies("a", map[string]events.Dependency{"git": {Name: "git", Status: "missing"}})
	s.SetActiveApps([]ActiveApp{{AppID: "a"}, {AppID: "b"}}, nil)
	s.MarkError("a")
	s.SetPreviewReady("a", 7860, "http://localhost:7860")

	// --- Act ---
	s.Disconnect("a")

	// --- Assert ---
	assert.Nil(t, s.Dependencies("a"))
	_, ok := s.ActiveApp("a")
	assert.False(t, ok)
	_, ok = s.ActiveApp("b")
	assert.True(t, ok, "other apps are untouched")
	assert.False(t, s.HasError("a"))
	assert.Equal(t, Preview{}, s.Preview("a"))
	assert.Equal(t, PhaseDisconnected, s.Phase("a"))
	assert.Equal(t, []string{"line"}, s.Logs("a"))
}

func TestStore_SetDependenciesReplacesSnapshot(t *testing.T) {
	t.Parallel()
	s := New(100, nil)

	s.SetDependencies("a", map[string]events.Dependency{"git": {Name: "git"}, "conda": {Name: "conda"}})
	s.SetDependencies("a", map[string]events.Dependency{"cuda": {Name: "cuda"}})

	want := map[string]events.Dependency{"cuda": {Name: "cuda"}}
	if diff := cmp.Diff(want, s.Dependencies("a")); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_NotSupportedIsTerminalUntilDismissed(t *testing.T) {
	t.Parallel()
	s := New(100, nil)
	require.True(t, s.SetPhase("a", PhaseConnecting))
	require.True(t, s.SetPhase("a", PhaseConnected))

	added := s.AddNotSupported("a", "no GPU", "no GPU", "windows only")

	assert.Equal(t, []string{"no GPU", "windows only"}, added)
	assert.Equal(t, PhaseNotSupported, s.Phase("a"))
	assert.False(t, s.SetPhase("a", PhaseRunning), "NotSupported requires dismissal")

	s.DismissNotSupported("a")
	assert.Empty(t, s.NotSupported("a"))
	assert.Equal(t, PhaseConnected, s.Phase("a"))
	assert.True(t, s.SetPhase("a", PhaseRunning))
}

func TestStore_PhaseTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to Phase
		ok       bool
	}{
		{PhaseDisconnected, PhaseConnecting, true},
		{PhaseDisconnected, PhaseRunning, false},
		{PhaseConnecting, PhaseConnected, true},
		{PhaseConnected, PhaseInstalling, true},
		{PhaseInstalling, PhaseRunning, true},
		{PhaseRunning, PhaseStopping, true},
		{PhaseRunning, PhaseFinished, true},
		{PhaseStopping, PhaseRunning, false},
		{PhaseNotSupported, PhaseDisconnected, true},
		{PhaseFinished, PhaseDisconnected, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, canTransition(tc.from, tc.to))
		})
	}
}

func TestStore_ProgressIsClamped(t *testing.T) {
	t.Parallel()
	s := New(100, nil)

	s.SetProgress("a", Progress{Percent: 140})
	p, ok := s.Progress("a")

	require.True(t, ok)
	assert.Equal(t, 100.0, p.Percent)
	assert.Equal(t, ModeDeterminate, p.Mode)
}

func TestStore_SetActiveAppsHonoursKeep(t *testing.T) {
	t.Parallel()
	s := New(100, nil)

	s.SetActiveApps([]ActiveApp{{AppID: "b"}, {AppID: "gone"}, {AppID: "a"}}, func(id string) bool { return id != "gone" })

	got := s.ActiveApps()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].AppID)
	assert.Equal(t, "b", got[1].AppID)
}

func TestStore_Snapshot(t *testing.T) {
	t.Parallel()
	s := New(100, nil)
	s.AppendLog("a", "one\ntwo\n")
	s.SetStatus("a", StatusEntry{Status: StatusSuccess, Content: "actions executed"})
	s.SetFinished("a", true)

	snap, ok := s.Snapshot("a")

	require.True(t, ok)
	assert.Equal(t, 2, snap.LogLines)
	require.NotNil(t, snap.Status)
	assert.Equal(t, StatusSuccess, snap.Status.Status)
	assert.True(t, snap.Finished)

	_, ok = s.Snapshot("unknown")
	assert.False(t, ok)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	t.Parallel()
	s := New(10000, nil)

	var wg sync.WaitGroup
	for app := 0; app < 4; app++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.AppendLog(id, fmt.Sprintf("%d\n", i))
			}
		}(fmt.Sprintf("app-%d", app))
	}
	wg.Wait()

	for app := 0; app < 4; app++ {
		lines := s.Logs(fmt.Sprintf("app-%d", app))
		require.Len(t, lines, 100)
		assert.Equal(t, "0", lines[0])
		assert.Equal(t, "99", lines[99], "per-app order is preserved")
	}
}
