package config

import (
	"time"

	"github.com/specialistvlad/scriptdeck/internal/events"
)

// fileRoot mirrors the top-level blocks of a configuration file. Every block
// and attribute is optional.
type fileRoot struct {
	Backend    *backendBlock    `hcl:"backend,block"`
	Session    *sessionBlock    `hcl:"session,block"`
	Heuristics *heuristicsBlock `hcl:"heuristics,block"`
	Status     *statusBlock     `hcl:"status,block"`
	Apps       []*appBlock      `hcl:"app,block"`
}

type backendBlock struct {
	Host       string `hcl:"host,optional"`
	Port       int    `hcl:"port,optional"`
	APITimeout string `hcl:"api_timeout,optional"`
	Retries    *int   `hcl:"retries,optional"`
	RemoteURL  string `hcl:"remote_url,optional"`
}

type sessionBlock struct {
	ReconnectTimeout string `hcl:"reconnect_timeout,optional"`
	HandshakeTimeout string `hcl:"handshake_timeout,optional"`
	PollInterval     string `hcl:"poll_interval,optional"`
	ResolveInterval  string `hcl:"resolve_interval,optional"`
	MaxLogLines      int    `hcl:"max_log_lines,optional"`
	ReservedAppID    string `hcl:"reserved_app_id,optional"`
}

type heuristicsBlock struct {
	SuccessPhrases     []string `hcl:"success_phrases,optional"`
	KillSuccessPhrases []string `hcl:"kill_success_phrases,optional"`
	FailurePhrases     []string `hcl:"failure_phrases,optional"`
	ServerReady        []string `hcl:"server_ready,optional"`
	ErrorMarker        string   `hcl:"error_marker,optional"`
}

type statusBlock struct {
	Port int `hcl:"port,optional"`
}

type appBlock struct {
	ID    string `hcl:"id,label"`
	Local bool   `hcl:"local,optional"`
	Port  int    `hcl:"port,optional"`
}

// App is an app to connect on start.
type App struct {
	ID    string
	Local bool
	// Port overrides the backend port for this app's transport.
	Port int
}

// Config is the resolved configuration.
type Config struct {
	BackendHost string
	BackendPort int
	APITimeout  time.Duration
	APIRetries  int
	RemoteURL   string

	ReconnectTimeout time.Duration
	HandshakeTimeout time.Duration
	PollInterval     time.Duration
	ResolveInterval  time.Duration
	MaxLogLines      int
	ReservedAppID    string

	Heuristics *events.Heuristics

	// StatusPort of the HTTP status server, 0 disables it.
	StatusPort int

	Apps []App
}

// Defaults.
const (
	DefaultBackendHost      = "localhost"
	DefaultBackendPort      = 3000
	DefaultAPITimeout       = 10 * time.Second
	DefaultAPIRetries       = 1
	DefaultReconnectTimeout = 2 * time.Second
	DefaultHandshakeTimeout = 15 * time.Second
	DefaultPollInterval     = time.Second
	DefaultResolveInterval  = 10 * time.Second
	DefaultMaxLogLines      = 5000
	DefaultReservedAppID    = "dione"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		BackendHost:      DefaultBackendHost,
		BackendPort:      DefaultBackendPort,
		APITimeout:       DefaultAPITimeout,
		APIRetries:       DefaultAPIRetries,
		ReconnectTimeout: DefaultReconnectTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
		PollInterval:     DefaultPollInterval,
		ResolveInterval:  DefaultResolveInterval,
		MaxLogLines:      DefaultMaxLogLines,
		ReservedAppID:    DefaultReservedAppID,
		Heuristics:       events.DefaultHeuristics(),
	}
}
