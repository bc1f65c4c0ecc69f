// Package events defines the typed events exchanged with the script backend
// and decodes raw socket.io payloads into them.
package events

// Name is the wire name of an event.
type Name string

// Events emitted by the backend.
const (
	ClientUpdate  Name = "clientUpdate"
	MissingDeps   Name = "missingDeps"
	InstallDep    Name = "installDep"
	InstallUpdate Name = "installUpdate"
	NotSupported  Name = "notSupported"
	DeleteUpdate  Name = "deleteUpdate"
)

// Transport-level events.
const (
	Connect      Name = "connect"
	Disconnect   Name = "disconnect"
	ConnectError Name = "connect_error"
)

// RegisterApp is emitted by the client once its transport is connected.
const RegisterApp Name = "registerApp"

// ServerEvents lists every application event a session subscribes to.
var ServerEvents = []Name{
	ClientUpdate,
	MissingDeps,
	InstallDep,
	InstallUpdate,
	NotSupported,
	DeleteUpdate,
}

// Event is implemented by every decoded event variant.
type Event interface {
	EventName() Name
}

// UpdateType discriminates installUpdate payloads.
type UpdateType string

const (
	UpdateLog             UpdateType = "log"
	UpdateInfo            UpdateType = "info"
	UpdateStatus          UpdateType = "status"
	UpdateCatch           UpdateType = "catch"
	UpdateInstallFinished UpdateType = "installFinished"
	UpdateProgress        UpdateType = "progress"
)

// ClientUpdateEvent carries a raw terminal chunk.
type ClientUpdateEvent struct {
	Text string
}

// InstallDepEvent carries output of the dependency installer.
type InstallDepEvent struct {
	Content string `json:"content"`
}

// MissingDepsEvent replaces the dependency diagnostics snapshot of an app.
type MissingDepsEvent struct {
	Dependencies map[string]Dependency
}

// NotSupportedEvent lists reasons the app cannot run on this platform.
type NotSupportedEvent struct {
	Reasons []string
}

// DeleteUpdateEvent carries a line of the uninstall log.
type DeleteUpdateEvent struct {
	Text string
}

// InstallUpdateEvent is the multiplexed script runner update.
type InstallUpdateEvent struct {
	Type     UpdateType `json:"type"`
	Content  string     `json:"content"`
	Status   string     `json:"status,omitempty"`
	Progress *Progress  `json:"progress,omitempty"`
}

// ConnectEvent is fired when the transport completes its handshake.
type ConnectEvent struct{}

// DisconnectEvent is fired when the transport drops.
type DisconnectEvent struct {
	Reason string
}

// Dependency is the diagnostic record of one dependency.
type Dependency struct {
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	Summary     string   `json:"summary,omitempty"`
	ExitCode    *int     `json:"exitCode,omitempty"`
	NeedsReboot bool     `json:"needsReboot,omitempty"`
	Logs        []string `json:"logs,omitempty"`
	Version     string   `json:"version,omitempty"`
	Required    string   `json:"required,omitempty"`
}

// Progress is a structured progress report.
type Progress struct {
	Mode    string   `json:"mode,omitempty"`
	Percent float64  `json:"percent"`
	Label   string   `json:"label,omitempty"`
	Status  string   `json:"status,omitempty"`
	RunID   string   `json:"runId,omitempty"`
	Steps   []string `json:"steps,omitempty"`
}

func (ClientUpdateEvent) EventName() Name  { return ClientUpdate }
func (InstallDepEvent) EventName() Name    { return InstallDep }
func (MissingDepsEvent) EventName() Name   { return MissingDeps }
func (NotSupportedEvent) EventName() Name  { return NotSupported }
func (DeleteUpdateEvent) EventName() Name  { return DeleteUpdate }
func (InstallUpdateEvent) EventName() Name { return InstallUpdate }
func (ConnectEvent) EventName() Name       { return Connect }
func (DisconnectEvent) EventName() Name    { return Disconnect }
