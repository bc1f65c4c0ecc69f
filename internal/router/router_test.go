package router

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/specialistvlad/scriptdeck/internal/notify"
	"github.com/specialistvlad/scriptdeck/internal/state"
	"github.com/specialistvlad/scriptdeck/internal/terminal"
	"github.com/specialistvlad/scriptdeck/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProber struct {
	reachable atomic.Bool
	probes    atomic.Int64
}

func (p *stubProber) Probe(context.Context, int) error {
	p.probes.Add(1)
	if p.reachable.Load() {
		return nil
	}
	return errors.New("connection refused")
}

type fixture struct {
	router   *Router
	store    *state.Store
	recorder *notify.Recorder
	prober   *stubProber

	mu    sync.Mutex
	lines []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := testutil.NewLogger(t)
	f := &fixture{
		store:    state.New(100, logger),
		recorder: notify.NewRecorder(0, nil),
		prober:   &stubProber{},
	}
	f.router = New(Config{
		Store:        f.store,
		Notifier:     f.recorder,
		Toaster:      f.recorder,
		Sink:         f.recorder,
		Prober:       f.prober,
		PollInterval: 5 * time.Millisecond,
		OnLines: func(_ string, lines []terminal.Line) {
			f.mu.Lock()
			defer f.mu.Unlock()
			for _, l := range lines {
				f.lines = append(f.lines, l.Text)
			}
		},
		Logger: logger,
	})
	t.Cleanup(func() { f.router.Forget("foo") })
	return f
}

func (f *fixture) handle(appID string, ev events.Event) {
	f.router.Handle(context.Background(), appID, ev)
}

func (f *fixture) toastsAt(level notify.Level) []string {
	var out []string
	for _, t := range f.recorder.Toasts() {
		if t.Level == level {
			out = append(out, t.Message)
		}
	}
	return out
}

func TestRouter_StatusSequenceFinishesRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t)

	// --- Act ---
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateStatus, Status: "pending", Content: "Installing"})
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateStatus, Status: "success", Content: "actions executed"})

	// --- Assert ---
	status, ok := f.store.Status("foo")
	require.True(t, ok)
	assert.Equal(t, state.StatusEntry{Status: "success", Content: "actions executed"}, status)
	assert.True(t, f.store.Finished("foo"))
	assert.Len(t, f.recorder.Notifications(), 1)
	progress, ok := f.store.Progress("foo")
	require.True(t, ok)
	assert.Equal(t, float64(100), progress.Percent)
}

func TestRouter_StatusDefaultsToPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateStatus, Content: "Queued"})

	status, _ := f.store.Status("foo")
	assert.Equal(t, state.StatusPending, status.Status)
	progress, _ := f.store.Progress("foo")
	assert.Equal(t, state.ModeIndeterminate, progress.Mode)
	assert.False(t, f.store.Finished("foo"))
}

func TestRouter_StickyErrorSuppressesKillSuccessToast(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t)
	f.handle("foo", events.ClientUpdateEvent{Text: "Traceback: ERROR while loading model\n"})

	// --- Act ---
	f.handle("foo", events.ClientUpdateEvent{Text: "Script killed successfully\n"})

	// --- Assert ---
	assert.True(t, f.store.HasError("foo"))
	assert.Empty(t, f.toastsAt(notify.LevelSuccess))

	// Other apps are unaffected.
	f.handle("bar", events.ClientUpdateEvent{Text: "Script killed successfully\n"})
	assert.Equal(t, []string{"Script killed successfully"}, f.toastsAt(notify.LevelSuccess))
}

func TestRouter_ClearResetsStickyError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateStatus, Status: "error", Content: "crashed"})
	require.True(t, f.store.HasError("foo"))

	f.store.ClearLogs("foo")
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateLog, Content: "Script killed successfully"})

	assert.Len(t, f.toastsAt(notify.LevelSuccess), 1)
}

func TestRouter_FailurePhraseRaisesWarning(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateLog, Content: "Failed to kill process 4242"})

	assert.Equal(t, []string{"Failed to kill process 4242"}, f.toastsAt(notify.LevelWarning))
	assert.Equal(t, []string{"Failed to kill process 4242"}, f.store.Logs("foo"))
}

func TestRouter_LogsAreNormalised(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.ClientUpdateEvent{Text: "Installing\rInstalling deps\n"})
	f.handle("foo", events.InstallDepEvent{Content: "   "})
	f.handle("foo", events.InstallDepEvent{Content: "pip install torch"})
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateInfo, Content: "\x1b[32mdone\x1b[0m"})

	assert.Equal(t, []string{"Installing deps", "pip install torch", "done"}, f.store.Logs("foo"))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"Installing deps", "pip install torch", "done"}, f.lines)
}

func TestRouter_ServerReadyLogStartsPreview(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t)
	f.prober.reachable.Store(true)

	// --- Act ---
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateLog, Content: "Server running on http://127.0.0.1:5173"})
	f.router.Detector("foo").Wait()

	// --- Assert ---
	pv := f.store.Preview("foo")
	assert.True(t, pv.Available)
	assert.Equal(t, 5173, pv.Port)
	assert.Equal(t, "http://localhost:5173", pv.URL)
	require.Len(t, f.recorder.Reveals(), 1)
	assert.Len(t, f.recorder.Notifications(), 1)

	// A repeated banner for the same reachable port does not poll again.
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateLog, Content: "Server running on http://127.0.0.1:5173"})
	assert.Equal(t, int64(1), f.router.Detector("foo").Loops())
}

func TestRouter_ClientUpdateDoesNotStartPreview(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.ClientUpdateEvent{Text: "listening on http://localhost:8080\n"})

	assert.Zero(t, f.router.Detector("foo").Loops())
}

func TestRouter_CatchCancelsPollAndRecordsCandidate(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	f := newFixture(t)
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateLog, Content: "Running on http://0.0.0.0:7860"})
	require.Eventually(t, func() bool { return f.prober.probes.Load() > 0 }, time.Second, time.Millisecond)

	// --- Act ---
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateCatch, Content: "5173"})
	f.router.Detector("foo").Wait()

	// --- Assert ---
	assert.False(t, f.router.Detector("foo").Polling())
	pv := f.store.Preview("foo")
	assert.Equal(t, 5173, pv.CandidatePort)
	assert.False(t, pv.Available)
	assert.Empty(t, f.recorder.Reveals())
}

func TestRouter_NotSupportedNotifiesOncePerReason(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.NotSupportedEvent{Reasons: []string{"requires CUDA"}})
	f.handle("foo", events.NotSupportedEvent{Reasons: []string{"requires CUDA"}})

	assert.Equal(t, []string{"requires CUDA"}, f.store.NotSupported("foo"))
	assert.Equal(t, state.PhaseNotSupported, f.store.Phase("foo"))
	assert.Len(t, f.recorder.Notifications(), 1)
}

func TestRouter_MissingDepsAndDeleteLog(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.MissingDepsEvent{Dependencies: map[string]events.Dependency{"git": {Name: "git", Status: "missing"}}})
	f.handle("foo", events.MissingDepsEvent{Dependencies: map[string]events.Dependency{"conda": {Name: "conda", Status: "missing"}}})
	f.handle("foo", events.DeleteUpdateEvent{Text: "Removing env\n"})

	deps := f.store.Dependencies("foo")
	assert.Len(t, deps, 1)
	assert.Contains(t, deps, "conda")
	assert.Equal(t, []string{"Removing env"}, f.store.DeleteLogs("foo"))
	assert.Empty(t, f.store.Logs("foo"))
}

func TestRouter_InstallFinished(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateInstallFinished})

	assert.True(t, f.store.JustInstalled("foo"))
	assert.Len(t, f.toastsAt(notify.LevelSuccess), 1)
}

func TestRouter_ProgressUpdate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.InstallUpdateEvent{
		Type:     events.UpdateProgress,
		Progress: &events.Progress{Mode: state.ModeDeterminate, Percent: 42, Label: "Downloading", RunID: "r1"},
	})

	p, ok := f.store.Progress("foo")
	require.True(t, ok)
	assert.Equal(t, float64(42), p.Percent)
	assert.Equal(t, "r1", p.RunID)
}

func TestRouter_ConnectionPhases(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.handle("foo", events.ConnectEvent{})
	assert.Equal(t, state.PhaseConnected, f.store.Phase("foo"))
	f.handle("foo", events.ClientUpdateEvent{Text: "hello\n"})
	assert.Equal(t, state.PhaseRunning, f.store.Phase("foo"))
	f.handle("foo", events.DisconnectEvent{Reason: "transport close"})
	assert.Equal(t, state.PhaseDisconnected, f.store.Phase("foo"))
}

func TestRouter_ForgetCancelsPreviewPoll(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.handle("foo", events.InstallUpdateEvent{Type: events.UpdateLog, Content: "http://localhost:3000"})
	d := f.router.Detector("foo")
	require.True(t, d.Polling())

	f.router.Forget("foo")

	assert.False(t, d.Polling())
	assert.NotSame(t, d, f.router.Detector("foo"), "a forgotten app gets a fresh detector")
}
