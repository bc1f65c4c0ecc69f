package session

import (
	"context"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/transport"
)

// ReconnectResult is the outcome of the reconnect policy.
type ReconnectResult int

const (
	// Connected means the existing transport is usable again.
	Connected ReconnectResult = iota
	// MustRecreate means the transport has to be replaced.
	MustRecreate
)

func (r ReconnectResult) String() string {
	if r == Connected {
		return "connected"
	}
	return "must-recreate"
}

// Reconnect makes one reconnect attempt on t and races it against timeout.
// A one-shot "connect" listener ends the race early. An already connected
// transport is left alone.
func Reconnect(ctx context.Context, t transport.Transport, timeout time.Duration) (ReconnectResult, error) {
	if t.Connected() {
		return Connected, nil
	}

	connected := make(chan struct{}, 1)
	t.Once("connect", func(...any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})

	t.Connect()
	if t.Connected() {
		return Connected, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-connected:
		return Connected, nil
	case <-timer.C:
		return MustRecreate, ErrReconnectTimeout
	case <-ctx.Done():
		return MustRecreate, ctx.Err()
	}
}
