package transport

import (
	"errors"
	"fmt"

	"github.com/akyaiy/GoSally-stream/internal/client/tracker"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotConnected    = errors.New("session is not ready")
	ErrEmptyEndpoint   = errors.New("endpoint event carried an empty url")
	ErrStreamClosed    = errors.New("event stream closed by server")
	ErrDisconnected    = errors.New("session disconnected")

	ErrDuplicateID = tracker.ErrDuplicateID
	ErrTimeout     = tracker.ErrTimeout
)

type TimeoutError = tracker.TimeoutError

// DisconnectError rejects every request that was pending when the session
// went down. Err is set when the stream failed rather than being closed
// on purpose.
type DisconnectError struct {
	Reason string
	Err    error
}

func (e *DisconnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session disconnected: %s: %v", e.Reason, e.Err)
	}
	return "session disconnected: " + e.Reason
}

func (e *DisconnectError) Is(target error) bool {
	return target == ErrDisconnected
}

func (e *DisconnectError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx answer to the stream GET or a message POST.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected http status %d", e.Code)
	}
	return fmt.Sprintf("unexpected http status %d: %s", e.Code, e.Body)
}
