package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/scriptdeck/internal/backend"
	"github.com/specialistvlad/scriptdeck/internal/config"
	"github.com/specialistvlad/scriptdeck/internal/ctxlog"
	"github.com/specialistvlad/scriptdeck/internal/notify"
	"github.com/specialistvlad/scriptdeck/internal/preview"
	"github.com/specialistvlad/scriptdeck/internal/resolver"
	"github.com/specialistvlad/scriptdeck/internal/router"
	"github.com/specialistvlad/scriptdeck/internal/session"
	"github.com/specialistvlad/scriptdeck/internal/state"
	"github.com/specialistvlad/scriptdeck/internal/terminal"
	"github.com/specialistvlad/scriptdeck/internal/transport"
)

const notificationHistory = 200

// Option replaces one of the collaborators NewApp would build itself.
type Option func(*deps)

type deps struct {
	dialer   transport.Dialer
	prober   preview.Prober
	metadata resolver.MetadataSource
	backend  session.Backend
}

// WithDialer sets the transport dialer used by sessions.
func WithDialer(d transport.Dialer) Option { return func(o *deps) { o.dialer = d } }

// WithProber sets the prober of the preview detectors.
func WithProber(p preview.Prober) Option { return func(o *deps) { o.prober = p } }

// WithMetadataSource sets the source of the active-apps resolver.
func WithMetadataSource(s resolver.MetadataSource) Option {
	return func(o *deps) { o.metadata = s }
}

// WithBackend sets the backend used to stop apps and install dependencies.
func WithBackend(b session.Backend) Option { return func(o *deps) { o.backend = b } }

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	outMu    sync.Mutex
	logger   *slog.Logger
	ctx      context.Context
	config   *Config
	settings *config.Config

	store    *state.Store
	recorder *notify.Recorder
	router   *router.Router
	manager  *session.Manager
	resolver *resolver.Resolver
	client   *backend.Client

	httpServer *http.Server
}

// NewApp builds a ready-to-run App. Normalised log lines are written to outW,
// structured logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	file, err := config.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	settings, err := cfg.settings(file)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Debug("Configuration resolved.", "apps", len(settings.Apps), "backend_port", settings.BackendPort)

	var d deps
	for _, opt := range opts {
		opt(&d)
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		ctx:      ctx,
		config:   cfg,
		settings: settings,
		store:    state.New(settings.MaxLogLines, logger),
		recorder: notify.NewRecorder(notificationHistory, notify.Log{Logger: logger}),
	}

	if d.metadata == nil || d.backend == nil {
		client, err := backend.New(backend.Config{
			BaseURL:   fmt.Sprintf("http://%s:%d", settings.BackendHost, settings.BackendPort),
			RemoteURL: settings.RemoteURL,
			Timeout:   settings.APITimeout,
			Retries:   settings.APIRetries,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		a.client = client
		if d.metadata == nil {
			d.metadata = client
		}
		if d.backend == nil {
			d.backend = client
		}
	}
	if d.dialer == nil {
		d.dialer = &transport.SocketIODialer{
			HandshakeTimeout: settings.HandshakeTimeout,
			Reconnection:     true,
		}
	}

	a.router = router.New(router.Config{
		Store:        a.store,
		Heuristics:   settings.Heuristics,
		Notifier:     a.recorder,
		Toaster:      a.recorder,
		Sink:         a.recorder,
		Prober:       d.prober,
		PreviewHost:  settings.BackendHost,
		PollInterval: settings.PollInterval,
		OnLines:      a.printLines,
		Logger:       logger,
	})
	a.manager = session.NewManager(session.Options{
		Host:             settings.BackendHost,
		ReconnectTimeout: settings.ReconnectTimeout,
		HandshakeTimeout: settings.HandshakeTimeout,
		Heuristics:       settings.Heuristics,
	}, d.dialer, a.router, a.store, a.recorder, d.backend, logger)
	a.resolver = resolver.New(resolver.Config{
		Source:     d.metadata,
		ReservedID: settings.ReservedAppID,
		Logger:     logger,
	})

	return a, nil
}

// Manager returns the session manager. This is primarily for testing.
func (a *App) Manager() *session.Manager { return a.manager }

// Store returns the state store. This is primarily for testing.
func (a *App) Store() *state.Store { return a.store }

// Recorder returns the side-channel history.
func (a *App) Recorder() *notify.Recorder { return a.recorder }

func (a *App) printLines(appID string, lines []terminal.Line) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	for _, l := range lines {
		fmt.Fprintf(a.outW, "[%s] %s\n", appID, l.Text)
	}
}

// targets lists the live sessions for the resolver.
func (a *App) targets() []resolver.Target {
	sessions := a.manager.Sessions()
	out := make([]resolver.Target, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, resolver.Target{AppID: s.AppID, IsLocal: s.IsLocal})
	}
	return out
}

// publishActive stores a resolved batch, dropping apps disconnected while
// the batch was being resolved.
func (a *App) publishActive(apps []state.ActiveApp) {
	a.store.SetActiveApps(apps, a.manager.Registry().Has)
}

// portFor returns the transport port of an app.
func (a *App) portFor(app config.App) int {
	if app.Port > 0 {
		return app.Port
	}
	return a.settings.BackendPort
}
