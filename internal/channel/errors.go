package channel

import "errors"

// Sentinel errors for channel operations.
var (
	// ErrNoChannel indicates a request targets a channel that is not
	// registered.
	ErrNoChannel = errors.New("channel: unknown channel")

	// ErrDuplicateChannel indicates a channel with the same target is
	// already registered.
	ErrDuplicateChannel = errors.New("channel: duplicate channel")

	// ErrNotAttached indicates no handler is registered for the request.
	ErrNotAttached = errors.New("channel: no handler attached")

	// ErrNotGroup indicates a group operation on a direct channel.
	ErrNotGroup = errors.New("channel: not a group channel")

	// ErrClosed indicates the channel was closed.
	ErrClosed = errors.New("channel: closed")

	// ErrDenied indicates the peer was blocked by the allow-list.
	ErrDenied = errors.New("channel: peer not allowed")
)
