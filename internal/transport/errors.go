package transport

import (
	"errors"
	"fmt"
)

// ErrNoAudio is returned by the request variant when a turn carries no
// audio buffer.
var ErrNoAudio = errors.New("turn has no audio payload")

var errChannelNotConnecting = errors.New("channel is not in the connecting state")

// TransportError reports a connection that never opened or dropped
// mid-flight. A streaming channel that produced one is terminal and must
// be recreated.
type TransportError struct {
	Op    string
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ServerError reports a non-2xx response. Body is captured while the
// response is still readable.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}
