package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// SocketIODialer creates socket.io transports. Every Dial builds its own
// manager so sessions never share a connection.
type SocketIODialer struct {
	Namespace          string
	InsecureSkipVerify bool
	// WebSocketOnly skips the long-polling upgrade path.
	WebSocketOnly bool
	// HandshakeTimeout bounds a single connection attempt of the client.
	HandshakeTimeout time.Duration
	// Reconnection lets the client retry dropped connections on its own.
	Reconnection bool
}

// Dial implements Dialer.
func (d *SocketIODialer) Dial(ctx context.Context, baseURL string) (Transport, error) {
	logger := ctxlog.FromContext(ctx).With("transport", "socketio", "url", baseURL)

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme and host are required", baseURL)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if d.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	if d.WebSocketOnly {
		opts.SetTransports(types.NewSet(transports.WebSocket))
	} else {
		opts.SetTransports(types.NewSet(transports.Polling, transports.WebSocket))
	}
	if d.HandshakeTimeout > 0 {
		opts.SetTimeout(d.HandshakeTimeout)
	}
	opts.SetReconnection(d.Reconnection)
	opts.SetForceNew(true)
	opts.SetAutoConnect(false)

	namespace := d.Namespace
	if namespace == "" {
		namespace = "/"
	}

	base := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(base, opts)
	io := manager.Socket(namespace, opts)
	logger.Debug("Created socket.io client instance.")

	return &socketIOTransport{io: io, logger: logger}, nil
}

type socketIOTransport struct {
	io     *socket.Socket
	logger *slog.Logger
}

func (t *socketIOTransport) ID() string      { return t.io.Id() }
func (t *socketIOTransport) Connected() bool { return t.io.Connected() }

func (t *socketIOTransport) On(event string, fn Listener) {
	if err := t.io.On(types.EventName(event), func(args ...any) { fn(args...) }); err != nil {
		t.logger.Error("Failed to register listener", "event", event, "error", err)
	}
}

func (t *socketIOTransport) Once(event string, fn Listener) {
	if err := t.io.Once(types.EventName(event), func(args ...any) { fn(args...) }); err != nil {
		t.logger.Error("Failed to register one-shot listener", "event", event, "error", err)
	}
}

func (t *socketIOTransport) Emit(event string, args ...any) error {
	return t.io.Emit(event, args...)
}

func (t *socketIOTransport) Connect() {
	t.logger.Debug("Initiating connection...")
	t.io.Connect()
}

func (t *socketIOTransport) Disconnect() {
	t.logger.Debug("Disconnecting socket client", "sid", t.io.Id())
	t.io.Disconnect()
}
