package transport

import "errors"

var (
	// ErrTimeout is returned by Subscriber.Recv when no message arrived
	// within the timeout.
	ErrTimeout = errors.New("transport: timeout")

	// ErrClosed is returned when the channel was torn down, either
	// locally or by the remote end.
	ErrClosed = errors.New("transport: closed")

	// ErrMalformed is returned when a message arrived but did not decode
	// to a record. The channel stays usable.
	ErrMalformed = errors.New("transport: malformed message")

	// ErrFull is returned by Pusher.Push when the channel cannot take the
	// record right away. The record is dropped.
	ErrFull = errors.New("transport: push buffer full")
)
