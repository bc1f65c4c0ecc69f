package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/specialistvlad/scriptdeck/internal/notify"
	"github.com/specialistvlad/scriptdeck/internal/preview"
	"github.com/specialistvlad/scriptdeck/internal/state"
)

func (r *Router) onConnect(_ context.Context, appID string, _ events.Event) {
	r.cfg.Store.SetPhase(appID, state.PhaseConnected)
	r.cfg.Logger.Info("Session connected.", "appId", appID)
}

func (r *Router) onDisconnect(_ context.Context, appID string, ev events.Event) {
	r.cfg.Store.SetPhase(appID, state.PhaseDisconnected)
	r.cfg.Logger.Info("Session disconnected.", "appId", appID, "reason", ev.(events.DisconnectEvent).Reason)
}

func (r *Router) onClientUpdate(_ context.Context, appID string, ev events.Event) {
	text := ev.(events.ClientUpdateEvent).Text
	sig := r.inspect(appID, text, "")
	if r.cfg.Store.Phase(appID) == state.PhaseConnected {
		r.cfg.Store.SetPhase(appID, state.PhaseRunning)
	}
	r.appendLog(appID, text)
	r.surface(appID, text, sig)
}

func (r *Router) onInstallDep(_ context.Context, appID string, ev events.Event) {
	content := ev.(events.InstallDepEvent).Content
	if strings.TrimSpace(content) == "" {
		return
	}
	sig := r.inspect(appID, content, "")
	r.cfg.Store.SetPhase(appID, state.PhaseInstalling)
	r.appendLog(appID, asLine(content))
	r.surface(appID, content, sig)
}

func (r *Router) onMissingDeps(_ context.Context, appID string, ev events.Event) {
	deps := ev.(events.MissingDepsEvent)
	r.cfg.Store.SetDependencies(appID, deps.Dependencies)
	r.cfg.Logger.Info("Dependency diagnostics updated.", "appId", appID, "deps", deps.SortedNames())
}

func (r *Router) onNotSupported(_ context.Context, appID string, ev events.Event) {
	added := r.cfg.Store.AddNotSupported(appID, ev.(events.NotSupportedEvent).Reasons...)
	if len(added) == 0 {
		return
	}
	r.cfg.Logger.Warn("App not supported.", "appId", appID, "reasons", added)
	r.notify(fmt.Sprintf("%s is not supported", appID), strings.Join(added, "\n"))
}

func (r *Router) onDeleteUpdate(_ context.Context, appID string, ev events.Event) {
	text := strings.TrimRight(ev.(events.DeleteUpdateEvent).Text, "\r\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	r.cfg.Store.AppendDeleteLog(appID, text)
}

func (r *Router) onInstallUpdate(ctx context.Context, appID string, ev events.Event) {
	up := ev.(events.InstallUpdateEvent)
	sig := r.inspect(appID, up.Content, up.Status)

	switch up.Type {
	case events.UpdateLog, events.UpdateInfo:
		if up.Content != "" {
			r.appendLog(appID, asLine(up.Content))
		}
		r.surface(appID, up.Content, sig)
		if sig.ServerReady {
			r.scanForPreview(ctx, appID, up.Content)
		}

	case events.UpdateStatus:
		r.onStatus(appID, up, sig)

	case events.UpdateCatch:
		r.Detector(appID).Cancel()
		if port, ok := catchPort(up.Content); ok {
			r.cfg.Store.SetCandidatePort(appID, port)
		}

	case events.UpdateInstallFinished:
		r.cfg.Store.SetJustInstalled(appID, true)
		r.cfg.Store.SetPhase(appID, state.PhaseConnected)
		if r.cfg.Store.HasError(appID) {
			r.toast(appID, notify.LevelWarning, fmt.Sprintf("%s finished installing with errors", appID))
		} else {
			r.toast(appID, notify.LevelSuccess, fmt.Sprintf("%s installed", appID))
		}

	case events.UpdateProgress:
		if up.Progress == nil {
			return
		}
		p := up.Progress
		r.cfg.Store.SetProgress(appID, state.Progress{
			Mode:    p.Mode,
			Percent: p.Percent,
			Label:   p.Label,
			Status:  p.Status,
			RunID:   p.RunID,
			Steps:   p.Steps,
		})
	}
}

func (r *Router) onStatus(appID string, up events.InstallUpdateEvent, sig events.Signals) {
	status := up.Status
	if status == "" {
		status = state.StatusPending
	}
	store := r.cfg.Store
	store.SetStatus(appID, state.StatusEntry{Status: status, Content: up.Content})

	switch status {
	case state.StatusPending:
		store.SetProgress(appID, state.Progress{Mode: state.ModeIndeterminate, Label: up.Content, Status: status})
	case state.StatusRunning:
		store.SetPhase(appID, state.PhaseRunning)
	}

	if sig.Success {
		store.SetFinished(appID, true)
		store.SetProgress(appID, state.Progress{Mode: state.ModeDeterminate, Percent: 100, Label: up.Content, Status: status})
		store.SetPhase(appID, state.PhaseFinished)
		r.cfg.Logger.Info("Run finished.", "appId", appID)
		r.notify(fmt.Sprintf("%s finished", appID), up.Content)
	}
}

// scanForPreview starts polling the port printed in content, unless that
// port is already known to be reachable.
func (r *Router) scanForPreview(ctx context.Context, appID, content string) {
	port, ok := preview.ExtractPort(content)
	if !ok {
		return
	}
	store := r.cfg.Store
	store.SetCandidatePort(appID, port)
	if pv := store.Preview(appID); pv.Available && pv.Port == port {
		return
	}
	if r.Detector(appID).LoadIframe(ctx, port) {
		r.cfg.Logger.Debug("Polling preview port.", "appId", appID, "port", port)
	}
}

// catchPort reads the candidate port of a catch update: either a bare number
// or an address printed in the content.
func catchPort(content string) (int, bool) {
	if n, err := strconv.Atoi(strings.TrimSpace(content)); err == nil && n > 0 && n <= 65535 {
		return n, true
	}
	return preview.ExtractPort(content)
}

// asLine terminates discrete log messages so the normalizer finalises them.
func asLine(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
