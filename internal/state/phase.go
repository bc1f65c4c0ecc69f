package state

// Phase is the lifecycle position of an app's session.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseInstalling
	PhaseRunning
	PhaseStopping
	PhaseFinished
	PhaseNotSupported
)

var phaseNames = map[Phase]string{
	PhaseDisconnected: "disconnected",
	PhaseConnecting:   "connecting",
	PhaseConnected:    "connected",
	PhaseInstalling:   "installing",
	PhaseRunning:      "running",
	PhaseStopping:     "stopping",
	PhaseFinished:     "finished",
	PhaseNotSupported: "not_supported",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the phase by name in JSON snapshots.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// transitions lists the allowed successors of each phase. Disconnected is
// reachable from everywhere and is handled in canTransition.
var transitions = map[Phase][]Phase{
	PhaseDisconnected: {PhaseConnecting, PhaseConnected},
	PhaseConnecting:   {PhaseConnected},
	PhaseConnected:    {PhaseInstalling, PhaseRunning, PhaseStopping, PhaseFinished, PhaseNotSupported},
	PhaseInstalling:   {PhaseRunning, PhaseStopping, PhaseFinished, PhaseNotSupported, PhaseConnected},
	PhaseRunning:      {PhaseInstalling, PhaseStopping, PhaseFinished, PhaseNotSupported},
	PhaseStopping:     {PhaseConnected, PhaseFinished},
	PhaseFinished:     {PhaseRunning, PhaseInstalling, PhaseStopping, PhaseConnected},
	// NotSupported is terminal until dismissed; see Store.DismissNotSupported.
	PhaseNotSupported: {},
}

func canTransition(from, to Phase) bool {
	if from == to || to == PhaseDisconnected {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
