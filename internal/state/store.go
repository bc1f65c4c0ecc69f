// Package state holds the per-app state slices the event router writes and
// the UI reads: logs, status, progress, dependency diagnostics, unsupported
// reasons, preview and lifecycle phase. Every slice is keyed by appID and an
// entry only disappears on an explicit Clear or Disconnect.
package state

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/specialistvlad/scriptdeck/internal/terminal"
)

// Status values of a StatusEntry.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Progress modes.
const (
	ModeDeterminate   = "determinate"
	ModeIndeterminate = "indeterminate"
)

// StatusEntry is the latest status update of an app.
type StatusEntry struct {
	Status  string `json:"status"`
	Content string `json:"content"`
}

// Progress is the latest progress report of an app.
type Progress struct {
	Mode    string   `json:"mode"`
	Percent float64  `json:"percent"`
	Label   string   `json:"label,omitempty"`
	Status  string   `json:"status,omitempty"`
	RunID   string   `json:"runId,omitempty"`
	Steps   []string `json:"steps,omitempty"`
}

// Preview describes the locally served UI of an app.
type Preview struct {
	CandidatePort int    `json:"candidatePort,omitempty"`
	Port          int    `json:"port,omitempty"`
	URL           string `json:"url,omitempty"`
	Available     bool   `json:"available"`
}

// ActiveApp is one entry of the resolved display list. Data is nil when the
// metadata lookup failed.
type ActiveApp struct {
	AppID   string         `json:"appId"`
	IsLocal bool           `json:"isLocal"`
	Data    map[string]any `json:"data"`
	Err     string         `json:"error,omitempty"`
}

type appState struct {
	logs          *terminal.Normalizer
	deleteLogs    []string
	status        *StatusEntry
	progress      *Progress
	deps          map[string]events.Dependency
	notSupported  []string
	finished      bool
	justInstalled bool
	stickyError   bool
	phase         Phase
	preview       Preview
}

// Store is the goroutine-safe container of every app's state.
type Store struct {
	mu       sync.RWMutex
	apps     map[string]*appState
	active   map[string]ActiveApp
	maxLines int
	logger   *slog.Logger
}

// New creates an empty store. maxLines caps each app's LogStream.
func New(maxLines int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		apps:     make(map[string]*appState),
		active:   make(map[string]ActiveApp),
		maxLines: maxLines,
		logger:   logger,
	}
}

// app returns the state of appID, creating it on first use. Callers hold mu.
func (s *Store) app(appID string) *appState {
	a, ok := s.apps[appID]
	if !ok {
		a = &appState{logs: terminal.New(s.maxLines)}
		s.apps[appID] = a
	}
	return a
}

// AppendLog feeds raw output into the app's LogStream and returns the lines
// it finalised.
func (s *Store) AppendLog(appID, raw string) []terminal.Line {
	s.mu.Lock()
	logs := s.app(appID).logs
	s.mu.Unlock()
	return logs.Feed(raw)
}

// Logs returns the renderable lines of appID.
func (s *Store) Logs(appID string) []string {
	s.mu.RLock()
	a, ok := s.apps[appID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return a.logs.Lines()
}

// LogsSince returns the finalised lines of appID newer than seq.
func (s *Store) LogsSince(appID string, seq uint64) []terminal.Line {
	s.mu.RLock()
	a, ok := s.apps[appID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return a.logs.Since(seq)
}

// ClearLogs resets the LogStream, the deletion log and the sticky error flag.
func (s *Store) ClearLogs(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[appID]
	if !ok {
		return
	}
	a.logs.Clear()
	a.deleteLogs = nil
	a.stickyError = false
}

// AppendDeleteLog appends a line to the uninstall log of appID.
func (s *Store) AppendDeleteLog(appID, line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.app(appID)
	a.deleteLogs = append(a.deleteLogs, line)
	if s.maxLines > 0 && len(a.deleteLogs) > s.maxLines {
		a.deleteLogs = append([]string(nil), a.deleteLogs[len(a.deleteLogs)-s.maxLines:]...)
	}
}

// DeleteLogs returns a copy of the uninstall log of appID.
func (s *Store) DeleteLogs(appID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.apps[appID]; ok {
		return append([]string(nil), a.deleteLogs...)
	}
	return nil
}

// SetStatus records the latest status of appID.
func (s *Store) SetStatus(appID string, entry StatusEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app(appID).status = &entry
}

// Status returns the latest status of appID.
func (s *Store) Status(appID string) (StatusEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.apps[appID]; ok && a.status != nil {
		return *a.status, true
	}
	return StatusEntry{}, false
}

// SetProgress records the latest progress of appID, clamping the percentage.
func (s *Store) SetProgress(appID string, p Progress) {
	if p.Percent < 0 {
		p.Percent = 0
	}
	if p.Percent > 100 {
		p.Percent = 100
	}
	if p.Mode == "" {
		p.Mode = ModeDeterminate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app(appID).progress = &p
}

// Progress returns the latest progress of appID.
func (s *Store) Progress(appID string) (Progress, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.apps[appID]; ok && a.progress != nil {
		return *a.progress, true
	}
	return Progress{}, false
}

// SetDependencies replaces the dependency diagnostics snapshot of appID.
func (s *Store) SetDependencies(appID string, deps map[string]events.Dependency) {
	snapshot := make(map[string]events.Dependency, len(deps))
	for name, d := range deps {
		snapshot[name] = d
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app(appID).deps = snapshot
}

// Dependencies returns a copy of the dependency diagnostics of appID.
func (s *Store) Dependencies(appID string) map[string]events.Dependency {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[appID]
	if !ok || a.deps == nil {
		return nil
	}
	out := make(map[string]events.Dependency, len(a.deps))
	for name, d := range a.deps {
		out[name] = d
	}
	return out
}

// AddNotSupported adds reasons to the unsupported set of appID and moves it
// to PhaseNotSupported. It returns the reasons that were new.
func (s *Store) AddNotSupported(appID string, reasons ...string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.app(appID)
	var added []string
	for _, r := range reasons {
		if !contains(a.notSupported, r) {
			a.notSupported = append(a.notSupported, r)
			added = append(added, r)
		}
	}
	if len(a.notSupported) > 0 {
		a.phase = PhaseNotSupported
	}
	return added
}

// NotSupported returns the unsupported reasons of appID.
func (s *Store) NotSupported(appID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.apps[appID]; ok {
		return append([]string(nil), a.notSupported...)
	}
	return nil
}

// DismissNotSupported clears the unsupported reasons and leaves the terminal
// NotSupported phase.
func (s *Store) DismissNotSupported(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[appID]
	if !ok {
		return
	}
	a.notSupported = nil
	if a.phase == PhaseNotSupported {
		a.phase = PhaseConnected
	}
}

// SetFinished flags the terminal success of appID's run.
func (s *Store) SetFinished(appID string, finished bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app(appID).finished = finished
}

// Finished reports whether appID reached terminal success.
func (s *Store) Finished(appID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[appID]
	return ok && a.finished
}

// SetJustInstalled records that appID's install run completed.
func (s *Store) SetJustInstalled(appID string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app(appID).justInstalled = v
}

// JustInstalled reports the wasJustInstalled flag of appID.
func (s *Store) JustInstalled(appID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[appID]
	return ok && a.justInstalled
}

// MarkError sets the sticky error flag of appID. It returns true if the flag
// was not set before.
func (s *Store) MarkError(appID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.app(appID)
	if a.stickyError {
		return false
	}
	a.stickyError = true
	return true
}

// HasError reports the sticky error flag of appID.
func (s *Store) HasError(appID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[appID]
	return ok && a.stickyError
}

// SetPhase moves appID to phase if the transition is allowed and reports
// whether it happened.
func (s *Store) SetPhase(appID string, phase Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.app(appID)
	if !canTransition(a.phase, phase) {
		s.logger.Debug("Ignoring phase transition.", "appId", appID, "from", a.phase, "to", phase)
		return false
	}
	a.phase = phase
	return true
}

// Phase returns the lifecycle phase of appID.
func (s *Store) Phase(appID string) Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.apps[appID]; ok {
		return a.phase
	}
	return PhaseDisconnected
}

// SetCandidatePort records a port discovered in logs without starting a preview.
func (s *Store) SetCandidatePort(appID string, port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app(appID).preview.CandidatePort = port
}

// SetPreviewReady marks the preview of appID as reachable.
func (s *Store) SetPreviewReady(appID string, port int, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.app(appID)
	a.preview.Port = port
	a.preview.URL = url
	a.preview.Available = true
}

// Preview returns the preview state of appID.
func (s *Store) Preview(appID string) Preview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.apps[appID]; ok {
		return a.preview
	}
	return Preview{}
}

// SetActiveApps replaces the resolved display list. Entries whose appID is
// rejected by keep are dropped so a resolution that raced a disconnect cannot
// resurrect the app.
func (s *Store) SetActiveApps(apps []ActiveApp, keep func(appID string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = make(map[string]ActiveApp, len(apps))
	for _, a := range apps {
		if keep != nil && !keep(a.AppID) {
			continue
		}
		s.active[a.AppID] = a
	}
}

// ActiveApps returns the resolved display list ordered by appID.
func (s *Store) ActiveApps() []ActiveApp {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ActiveApp, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppID < out[j].AppID })
	return out
}

// ActiveApp returns the display entry of appID.
func (s *Store) ActiveApp(appID string) (ActiveApp, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.active[appID]
	return a, ok
}

// Disconnect drops the connection-scoped state of appID: dependency
// diagnostics, the active-apps entry, the sticky error flag and the preview.
// Logs and the last status stay readable until ClearLogs.
func (s *Store) Disconnect(appID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, appID)
	a, ok := s.apps[appID]
	if !ok {
		return
	}
	a.deps = nil
	a.stickyError = false
	a.preview = Preview{}
	a.phase = PhaseDisconnected
}

// AppIDs returns every appID the store knows, sorted.
func (s *Store) AppIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.apps))
	for id := range s.apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
