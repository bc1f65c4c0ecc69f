package state

import "github.com/specialistvlad/scriptdeck/internal/events"

// Snapshot is a point-in-time copy of everything known about one app.
type Snapshot struct {
	AppID         string                       `json:"appId"`
	Phase         Phase                        `json:"phase"`
	Status        *StatusEntry                 `json:"status,omitempty"`
	Progress      *Progress                    `json:"progress,omitempty"`
	Dependencies  map[string]events.Dependency `json:"dependencies,omitempty"`
	NotSupported  []string                     `json:"notSupported,omitempty"`
	Finished      bool                         `json:"finished"`
	JustInstalled bool                         `json:"wasJustInstalled"`
	Error         bool                         `json:"error"`
	Preview       Preview                      `json:"preview"`
	LogLines      int                          `json:"logLines"`
}

// Snapshot copies the state of appID. ok is false for unknown apps.
func (s *Store) Snapshot(appID string) (Snapshot, bool) {
	s.mu.RLock()
	a, ok := s.apps[appID]
	if !ok {
		s.mu.RUnlock()
		return Snapshot{}, false
	}
	snap := Snapshot{
		AppID:         appID,
		Phase:         a.phase,
		NotSupported:  append([]string(nil), a.notSupported...),
		Finished:      a.finished,
		JustInstalled: a.justInstalled,
		Error:         a.stickyError,
		Preview:       a.preview,
	}
	if a.status != nil {
		st := *a.status
		snap.Status = &st
	}
	if a.progress != nil {
		p := *a.progress
		snap.Progress = &p
	}
	if a.deps != nil {
		snap.Dependencies = make(map[string]events.Dependency, len(a.deps))
		for name, d := range a.deps {
			snap.Dependencies[name] = d
		}
	}
	logs := a.logs
	s.mu.RUnlock()

	snap.LogLines = len(logs.Lines())
	return snap, true
}
