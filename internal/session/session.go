package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/scriptdeck/internal/events"
	"github.com/specialistvlad/scriptdeck/internal/transport"
)

// inbound is one raw transport event waiting for dispatch. A non-nil barrier
// is closed by the dispatcher instead of decoding anything.
type inbound struct {
	name    events.Name
	args    []any
	barrier chan struct{}
}

// Session is the transport and dispatch queue of one app. Events are handled
// one at a time in arrival order by a dedicated goroutine.
type Session struct {
	AppID      string
	InstanceID string
	IsLocal    bool
	Port       int
	CreatedAt  time.Time

	transport transport.Transport
	bindOnce  sync.Once

	inbox     chan inbound
	ctx       context.Context
	cancel    context.CancelFunc
	stopped   chan struct{}
	closeOnce sync.Once
}

func newSession(parent context.Context, appID string, isLocal bool, port int, t transport.Transport, queueSize int) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		AppID:      appID,
		InstanceID: uuid.NewString(),
		IsLocal:    isLocal,
		Port:       port,
		CreatedAt:  time.Now(),
		transport:  t,
		inbox:      make(chan inbound, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		stopped:    make(chan struct{}),
	}
}

// Transport returns the transport handle of the session.
func (s *Session) Transport() transport.Transport { return s.transport }

// Connected reports whether the transport is currently connected.
func (s *Session) Connected() bool { return s.transport.Connected() }

// Done is closed once the session was torn down.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// enqueue hands a transport event to the dispatcher. Events arriving after
// teardown are dropped.
func (s *Session) enqueue(in inbound) bool {
	if s.ctx.Err() != nil {
		return false
	}
	select {
	case s.inbox <- in:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Sync waits until every event enqueued before the call has been handled.
func (s *Session) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	if !s.enqueue(inbound{barrier: barrier}) {
		return ErrSessionClosed
	}
	select {
	case <-barrier:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close cancels the session context, which stops the dispatcher and any wait
// bound to the session. It does not touch the transport.
func (s *Session) close() {
	s.closeOnce.Do(s.cancel)
}
