package relay

import (
	"errors"
	"fmt"
)

// Sentinel errors for relay operations.
var (
	// ErrSend is wrapped by every SendError.
	ErrSend = errors.New("relay: send failed")

	// ErrClosed indicates the relay was closed.
	ErrClosed = errors.New("relay: closed")

	// ErrInvalidTarget indicates an identifier that names neither a user nor
	// a chat.
	ErrInvalidTarget = errors.New("relay: invalid target identifier")
)

// SendError reports a failed outgoing message.
type SendError struct {
	Peer string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("relay: send to %s failed: %v", e.Peer, e.Err)
}

// Unwrap returns both ErrSend and the underlying client error so that
// errors.Is matches either.
func (e *SendError) Unwrap() []error {
	return []error{ErrSend, e.Err}
}
