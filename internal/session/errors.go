package session

import (
	"errors"
	"fmt"
)

// ErrReconnectTimeout is returned by the reconnect policy when the transport
// did not report "connect" within the allowed time.
var ErrReconnectTimeout = errors.New("reconnect timed out")

// ErrSessionClosed is returned when waiting on a session that was torn down.
var ErrSessionClosed = errors.New("session closed")

// TransportError reports a failure to build or reuse the transport of an app.
type TransportError struct {
	AppID string
	Op    string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s for app %q failed: %v", e.Op, e.AppID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
