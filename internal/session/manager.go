package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/specialistvlad/scriptdeck/internal/notify"
	"github.com/specialistvlad/scriptdeck/internal/state"
	"github.com/specialistvlad/scriptdeck/internal/transport"
)

// Default values of Options.
const (
	DefaultHost             = "localhost"
	DefaultReconnectTimeout = 2 * time.Second
	DefaultHandshakeTimeout = 15 * time.Second
	DefaultQueueSize        = 256
)

// EventHandler consumes the decoded events of every session.
type EventHandler interface {
	Handle(ctx context.Context, appID string, ev events.Event)
	// Forget drops per-app resources once the app is disconnected.
	Forget(appID string)
}

// Backend is the REST side the manager drives on behalf of the user.
type Backend interface {
	StopApp(ctx context.Context, appID string) (string, error)
	InstallDependencies(ctx context.Context, appID string, deps []string) error
}

// Options tune the connection manager. Zero values fall back to defaults.
type Options struct {
	Host             string
	ReconnectTimeout time.Duration
	HandshakeTimeout time.Duration
	QueueSize        int
	// Events are the server events subscribed on every transport.
	Events []events.Name
	// Heuristics classify the backend answer of StopApp.
	Heuristics *events.Heuristics
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = DefaultHost
	}
	if o.ReconnectTimeout <= 0 {
		o.ReconnectTimeout = DefaultReconnectTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if len(o.Events) == 0 {
		o.Events = events.ServerEvents
	}
	if o.Heuristics == nil {
		o.Heuristics = events.DefaultHeuristics()
	}
	return o
}

// Manager owns every app session: it creates, reuses, reconnects and tears
// down transports and feeds their events to the EventHandler.
type Manager struct {
	opts     Options
	registry *Registry
	dialer   transport.Dialer
	handler  EventHandler
	store    *state.Store
	toaster  notify.Toaster
	backend  Backend
	logger   *slog.Logger

	root   context.Context
	cancel context.CancelFunc
}

// NewManager wires a manager. backend and toaster may be nil.
func NewManager(opts Options, dialer transport.Dialer, handler EventHandler, store *state.Store, toaster notify.Toaster, backend Backend, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts.withDefaults(),
		registry: NewRegistry(),
		dialer:   dialer,
		handler:  handler,
		store:    store,
		toaster:  toaster,
		backend:  backend,
		logger:   logger,
		root:     root,
		cancel:   cancel,
	}
}

// Registry exposes the live sessions.
func (m *Manager) Registry() *Registry { return m.registry }

// Sessions returns every live session ordered by appID.
func (m *Manager) Sessions() []*Session { return m.registry.Snapshot() }

// Connect returns the session of appID, creating or reviving its transport.
// Concurrent calls for the same appID share one attempt. Connection problems
// are logged, not returned: the caller gets a session whose transport keeps
// retrying in the background. Only an invalid dial or ctx cancellation errors,
// and ErrSessionClosed when Disconnect(appID) lands while the attempt is in
// flight; nothing is registered in that case.
func (m *Manager) Connect(ctx context.Context, appID string, isLocal bool, port int) (*Session, error) {
	if appID == "" {
		return nil, errors.New("connect: appID is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("connect %s: invalid port %d", appID, port)
	}

	// The shared attempt must outlive a caller that gives up early.
	work := context.WithoutCancel(ctx)
	ch := m.registry.inflight.DoChan(appID, func() (any, error) {
		return m.connect(work, appID, isLocal, port)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) connect(ctx context.Context, appID string, isLocal bool, port int) (*Session, error) {
	logger := m.logger.With("appId", appID)
	gen := m.registry.generation(appID)

	if s, ok := m.registry.Get(appID); ok {
		if s.Connected() {
			logger.Debug("Reusing connected session.", "instance", s.InstanceID)
			return s, nil
		}
		res, err := Reconnect(s.ctx, s.transport, m.opts.ReconnectTimeout)
		if res == Connected {
			logger.Info("Reconnected existing transport.", "instance", s.InstanceID)
			return s, nil
		}
		if s.ctx.Err() != nil || !m.registry.removeIf(s) {
			logger.Info("Session disconnected while reconnecting.", "instance", s.InstanceID)
			return nil, ErrSessionClosed
		}
		logger.Info("Recreating transport.", "instance", s.InstanceID, "reason", err)
		m.teardown(s)
		m.store.SetPhase(appID, state.PhaseDisconnected)
	}

	return m.create(ctx, appID, isLocal, port, gen)
}

func (m *Manager) create(ctx context.Context, appID string, isLocal bool, port int, gen uint64) (*Session, error) {
	logger := m.logger.With("appId", appID)
	baseURL := fmt.Sprintf("http://%s:%d", m.opts.Host, port)

	t, err := m.dialer.Dial(ctx, baseURL)
	if err != nil {
		return nil, &TransportError{AppID: appID, Op: "dial", Err: err}
	}

	s := newSession(m.root, appID, isLocal, port, t, m.opts.QueueSize)
	m.bind(s, logger)
	go m.dispatch(s, logger)
	m.store.SetPhase(appID, state.PhaseConnecting)
	prev, ok := m.registry.put(s, gen)
	if !ok {
		logger.Info("App disconnected while dialing, dropping transport.", "url", baseURL)
		m.teardown(s)
		m.store.SetPhase(appID, state.PhaseDisconnected)
		return nil, ErrSessionClosed
	}
	if prev != nil && prev != s {
		m.teardown(prev)
	}

	connected := make(chan struct{}, 1)
	failed := make(chan any, 1)
	t.Once("connect", func(...any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	t.Once(string(events.ConnectError), func(args ...any) {
		select {
		case failed <- firstArg(args):
		default:
		}
	})

	logger.Info("Connecting.", "url", baseURL, "instance", s.InstanceID)
	t.Connect()
	if t.Connected() {
		return s, nil
	}

	timer := time.NewTimer(m.opts.HandshakeTimeout)
	defer timer.Stop()
	select {
	case <-connected:
	case reason := <-failed:
		logger.Warn("Initial connection failed, transport keeps retrying.", "error", reason)
	case <-timer.C:
		logger.Warn("Handshake timed out, transport keeps retrying.", "timeout", m.opts.HandshakeTimeout)
	case <-s.ctx.Done():
		return nil, ErrSessionClosed
	}
	return s, nil
}

// bind registers the session listeners on its transport, once per transport.
func (m *Manager) bind(s *Session, logger *slog.Logger) {
	s.bindOnce.Do(func() {
		t := s.transport
		t.On(string(events.Connect), func(...any) {
			if err := t.Emit(string(events.RegisterApp), s.AppID); err != nil {
				logger.Warn("Failed to register app.", "error", err)
			}
			s.enqueue(inbound{name: events.Connect})
		})
		t.On(string(events.Disconnect), func(args ...any) {
			s.enqueue(inbound{name: events.Disconnect, args: args})
		})
		t.On(string(events.ConnectError), func(args ...any) {
			logger.Debug("Connection attempt failed.", "error", firstArg(args))
		})
		for _, name := range m.opts.Events {
			name := name
			t.On(string(name), func(args ...any) {
				s.enqueue(inbound{name: name, args: args})
			})
		}
	})
}

// dispatch is the per-session actor: it decodes and handles events one at a
// time until the session is torn down.
func (m *Manager) dispatch(s *Session, logger *slog.Logger) {
	defer close(s.stopped)
	for {
		select {
		case <-s.ctx.Done():
			return
		case in := <-s.inbox:
			if in.barrier != nil {
				close(in.barrier)
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			ev, err := events.Decode(in.name, in.args)
			if err != nil {
				logger.Warn("Dropping malformed event.", "error", err)
				continue
			}
			m.handler.Handle(s.ctx, s.AppID, ev)
		}
	}
}

// teardown stops the dispatcher and disconnects the transport, ignoring any
// failure of the latter.
func (m *Manager) teardown(s *Session) {
	s.close()
	<-s.stopped
	m.disconnectTransport(s.AppID, s.transport)
}

func (m *Manager) disconnectTransport(appID string, t transport.Transport) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Debug("Ignoring transport disconnect failure.", "appId", appID, "panic", r)
		}
	}()
	t.Disconnect()
}

// Disconnect tears down the session of appID and clears its connection
// state: dependency diagnostics, active-apps entry, sticky error flag and
// preview. Logs survive. A pending reconnect wait or dial for appID is
// abandoned. It reports whether a session existed.
func (m *Manager) Disconnect(appID string) bool {
	s := m.registry.remove(appID)
	if s != nil {
		m.teardown(s)
		m.logger.Info("Disconnected.", "appId", appID, "instance", s.InstanceID)
	}
	m.handler.Forget(appID)
	m.store.Disconnect(appID)
	return s != nil
}

// StopApp asks the backend to stop appID.
func (m *Manager) StopApp(ctx context.Context, appID string) error {
	if m.backend == nil {
		return errors.New("stop app: no backend configured")
	}
	m.store.SetPhase(appID, state.PhaseStopping)
	msg, err := m.backend.StopApp(ctx, appID)
	if err != nil {
		m.toast(appID, notify.LevelWarning, fmt.Sprintf("Failed to stop %s", appID))
		return fmt.Errorf("stop app %s: %w", appID, err)
	}
	if sig := m.opts.Heuristics.Inspect(msg, ""); sig.Failure != "" {
		m.toast(appID, notify.LevelWarning, msg)
	}
	return nil
}

// InstallDependencies triggers the backend installation of deps for appID.
func (m *Manager) InstallDependencies(ctx context.Context, appID string, deps []string) error {
	if m.backend == nil {
		return errors.New("install dependencies: no backend configured")
	}
	m.store.SetPhase(appID, state.PhaseInstalling)
	if err := m.backend.InstallDependencies(ctx, appID, deps); err != nil {
		m.toast(appID, notify.LevelWarning, fmt.Sprintf("Failed to install dependencies of %s", appID))
		return fmt.Errorf("install dependencies %s: %w", appID, err)
	}
	return nil
}

// ClearLogs resets the log stream and the sticky error flag of appID
// without touching its session.
func (m *Manager) ClearLogs(appID string) {
	m.store.ClearLogs(appID)
}

// DismissNotSupported leaves the terminal NotSupported state of appID.
func (m *Manager) DismissNotSupported(appID string) {
	m.store.DismissNotSupported(appID)
}

// Close disconnects every session.
func (m *Manager) Close() {
	for _, s := range m.registry.Snapshot() {
		m.Disconnect(s.AppID)
	}
	m.cancel()
}

func (m *Manager) toast(appID string, level notify.Level, msg string) {
	if m.toaster != nil {
		m.toaster.Toast(appID, level, msg)
	}
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
