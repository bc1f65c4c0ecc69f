// Package router interprets the decoded events of every session and writes
// the outcome into the per-app state store. It also decides which events
// reach the user as toasts, desktop notifications or a preview.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/specialistvlad/scriptdeck/internal/handlers"
	"github.com/specialistvlad/scriptdeck/internal/notify"
	"github.com/specialistvlad/scriptdeck/internal/preview"
	"github.com/specialistvlad/scriptdeck/internal/state"
	"github.com/specialistvlad/scriptdeck/internal/terminal"
)

// Config wires a Router to the store and its collaborators. Nil collaborators
// are skipped.
type Config struct {
	Store      *state.Store
	Heuristics *events.Heuristics
	Notifier   notify.Notifier
	Toaster    notify.Toaster
	Sink       notify.PreviewSink

	// Prober, PreviewHost and PollInterval configure the preview detectors.
	Prober       preview.Prober
	PreviewHost  string
	PollInterval time.Duration

	// OnLines receives the lines finalised by each log append.
	OnLines func(appID string, lines []terminal.Line)
	Logger  *slog.Logger
}

// Router implements session.EventHandler.
type Router struct {
	cfg      Config
	handlers *handlers.Handlers

	mu        sync.Mutex
	detectors map[string]*preview.Detector
}

// New creates a Router with every event handler registered.
func New(cfg Config) *Router {
	if cfg.Heuristics == nil {
		cfg.Heuristics = events.DefaultHeuristics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("component", "router")

	r := &Router{
		cfg:       cfg,
		handlers:  handlers.New(),
		detectors: make(map[string]*preview.Detector),
	}
	r.handlers.RegisterHandler(events.Connect, r.onConnect)
	r.handlers.RegisterHandler(events.Disconnect, r.onDisconnect)
	r.handlers.RegisterHandler(events.ClientUpdate, r.onClientUpdate)
	r.handlers.RegisterHandler(events.InstallDep, r.onInstallDep)
	r.handlers.RegisterHandler(events.MissingDeps, r.onMissingDeps)
	r.handlers.RegisterHandler(events.NotSupported, r.onNotSupported)
	r.handlers.RegisterHandler(events.DeleteUpdate, r.onDeleteUpdate)
	r.handlers.RegisterHandler(events.InstallUpdate, r.onInstallUpdate)
	return r
}

// Handle routes ev to its handler. Events without a handler are logged.
func (r *Router) Handle(ctx context.Context, appID string, ev events.Event) {
	fn, ok := r.handlers.Get(ev.EventName())
	if !ok {
		r.cfg.Logger.Debug("No handler for event.", "appId", appID, "event", ev.EventName())
		return
	}
	fn(ctx, appID, ev)
}

// Forget cancels the preview poll of appID and drops its detector.
func (r *Router) Forget(appID string) {
	r.mu.Lock()
	d := r.detectors[appID]
	delete(r.detectors, appID)
	r.mu.Unlock()
	if d != nil {
		d.Cancel()
		d.Wait()
	}
}

// Detector returns the preview detector of appID, creating it on first use.
func (r *Router) Detector(appID string) *preview.Detector {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.detectors[appID]
	if !ok {
		store := r.cfg.Store
		d = preview.New(preview.Config{
			AppID:    appID,
			Host:     r.cfg.PreviewHost,
			Prober:   r.cfg.Prober,
			Interval: r.cfg.PollInterval,
			Notifier: r.cfg.Notifier,
			Sink:     r.cfg.Sink,
			OnReady: func(port int, url string) {
				store.SetPreviewReady(appID, port, url)
			},
			Logger: r.cfg.Logger,
		})
		r.detectors[appID] = d
	}
	return d
}

func (r *Router) appendLog(appID, raw string) {
	lines := r.cfg.Store.AppendLog(appID, raw)
	if len(lines) > 0 && r.cfg.OnLines != nil {
		r.cfg.OnLines(appID, lines)
	}
}

// inspect classifies content and raises the sticky error flag when needed.
func (r *Router) inspect(appID, content, status string) events.Signals {
	sig := r.cfg.Heuristics.Inspect(content, status)
	if sig.Error && r.cfg.Store.MarkError(appID) {
		r.cfg.Logger.Info("Sticky error flag raised.", "appId", appID)
	}
	return sig
}

// surface turns the recognised phrases of one piece of content into toasts.
func (r *Router) surface(appID, content string, sig events.Signals) {
	content = strings.TrimSpace(content)
	if sig.Failure != "" {
		r.toast(appID, notify.LevelWarning, content)
	}
	if sig.KillSuccess && !r.cfg.Store.HasError(appID) {
		r.toast(appID, notify.LevelSuccess, content)
	}
}

func (r *Router) toast(appID string, level notify.Level, msg string) {
	if r.cfg.Toaster != nil {
		r.cfg.Toaster.Toast(appID, level, msg)
	}
}

func (r *Router) notify(title, body string) {
	if r.cfg.Notifier != nil {
		r.cfg.Notifier.Notify(title, body)
	}
}
