package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/specialistvlad/scriptdeck/internal/transport"
)

// Emitted is one client-side emit recorded by FakeTransport.
type Emitted struct {
	Event string
	Args  []any
}

// FakeTransport is an in-memory transport.Transport. By default Connect
// succeeds synchronously and fires "connect"; set OnConnect to change that.
type FakeTransport struct {
	// OnConnect replaces the default connect behaviour when set.
	OnConnect func(t *FakeTransport)

	mu          sync.Mutex
	id          string
	connected   bool
	listeners   map[string][]transport.Listener
	once        map[string][]transport.Listener
	emitted     []Emitted
	connects    int
	disconnects int
}

var fakeIDs atomic.Int64

// NewFakeTransport creates an idle fake transport.
func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		id:        fmt.Sprintf("fake-%d", fakeIDs.Add(1)),
		listeners: make(map[string][]transport.Listener),
		once:      make(map[string][]transport.Listener),
	}
}

func (f *FakeTransport) ID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

func (f *FakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeTransport) On(event string, fn transport.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners[event] = append(f.listeners[event], fn)
}

func (f *FakeTransport) Once(event string, fn transport.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.once[event] = append(f.once[event], fn)
}

func (f *FakeTransport) Emit(event string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errors.New("fake transport: not connected")
	}
	f.emitted = append(f.emitted, Emitted{Event: event, Args: args})
	return nil
}

func (f *FakeTransport) Connect() {
	f.mu.Lock()
	f.connects++
	hook := f.OnConnect
	f.mu.Unlock()

	if hook != nil {
		hook(f)
		return
	}
	f.SetConnected(true)
	f.Fire("connect")
}

func (f *FakeTransport) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	was := f.connected
	f.connected = false
	f.mu.Unlock()

	if was {
		f.Fire("disconnect", "io client disconnect")
	}
}

// SetConnected flips the connected flag without firing events.
func (f *FakeTransport) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

// Fire delivers a server event to the registered listeners, one-shot
// listeners first.
func (f *FakeTransport) Fire(event string, args ...any) {
	f.mu.Lock()
	once := f.once[event]
	delete(f.once, event)
	persistent := append([]transport.Listener(nil), f.listeners[event]...)
	f.mu.Unlock()

	for _, fn := range once {
		fn(args...)
	}
	for _, fn := range persistent {
		fn(args...)
	}
}

// ListenerCount returns the number of persistent listeners for event.
func (f *FakeTransport) ListenerCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners[event])
}

// OnceCount returns the number of one-shot listeners still pending for event.
func (f *FakeTransport) OnceCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.once[event])
}

// Emitted returns every emit recorded so far.
func (f *FakeTransport) Emitted() []Emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Emitted(nil), f.emitted...)
}

// Connects returns how many times Connect was called.
func (f *FakeTransport) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// Disconnects returns how many times Disconnect was called.
func (f *FakeTransport) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// FakeDialer hands out FakeTransports and counts dials.
type FakeDialer struct {
	// New builds the transport of each dial; defaults to NewFakeTransport.
	New func() *FakeTransport
	// Gate, when set, blocks every dial until it is closed.
	Gate chan struct{}
	// Err makes every dial fail.
	Err error

	mu         sync.Mutex
	dials      int
	urls       []string
	transports []*FakeTransport
	entered    chan struct{}
}

// Dial implements transport.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, baseURL string) (transport.Transport, error) {
	d.mu.Lock()
	d.dials++
	d.urls = append(d.urls, baseURL)
	if d.entered != nil {
		select {
		case d.entered <- struct{}{}:
		default:
		}
	}
	gate := d.Gate
	d.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.Err != nil {
		return nil, d.Err
	}

	build := d.New
	if build == nil {
		build = NewFakeTransport
	}
	t := build()
	d.mu.Lock()
	d.transports = append(d.transports, t)
	d.mu.Unlock()
	return t, nil
}

// Entered returns a channel that receives once per dial that started.
func (d *FakeDialer) Entered() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entered == nil {
		d.entered = make(chan struct{}, 16)
	}
	return d.entered
}

// Dials returns how many dials were attempted.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// URLs returns the base URLs of every dial.
func (d *FakeDialer) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// Transports returns the transports created so far.
func (d *FakeDialer) Transports() []*FakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeTransport(nil), d.transports...)
}
