// Package transport abstracts the bidirectional event channel between a
// session and the script backend.
package transport

import "context"

// Listener receives the raw arguments of an event.
type Listener func(args ...any)

// Transport is one event channel to the backend. Implementations invoke
// listeners from their own goroutines.
type Transport interface {
	// ID identifies the underlying connection, empty while disconnected.
	ID() string
	Connected() bool
	// On registers a persistent listener.
	On(event string, fn Listener)
	// Once registers a listener removed after its first invocation.
	Once(event string, fn Listener)
	Emit(event string, args ...any) error
	// Connect starts (or restarts) the handshake without waiting for it.
	Connect()
	Disconnect()
}

// Dialer builds a Transport for a backend base URL. Dial does not connect.
type Dialer interface {
	Dial(ctx context.Context, baseURL string) (Transport, error)
}
