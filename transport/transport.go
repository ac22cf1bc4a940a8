// Package transport defines the channels a clone client talks through. The
// client only depends on these interfaces; remote and inproc provide
// implementations.
package transport

import (
	"context"
	"time"

	"github.com/docker/clonekit/api"
)

// Requester is the synchronous request/reply channel used once, at
// bootstrap, to fetch a snapshot.
type Requester interface {
	// Request sends req. Replies are read with Recv.
	Request(ctx context.Context, req *api.Record) error
	// Recv blocks until the next reply arrives, the context is done or the
	// channel is torn down.
	Recv(ctx context.Context) (*api.Record, error)
	Close() error
}

// Subscriber is the broadcast channel carrying updates for every key.
type Subscriber interface {
	// Recv waits at most timeout for the next update. It returns
	// ErrTimeout when the wait elapses, ErrMalformed when a message
	// arrived but could not be decoded, ErrClosed when the channel was
	// torn down, and the context error when ctx is done. A zero timeout
	// polls.
	Recv(ctx context.Context, timeout time.Duration) (*api.Record, error)
	Close() error
}

// Pusher is the one-way channel toward the collector.
type Pusher interface {
	// Push queues rec for delivery and returns without waiting for it to
	// be delivered. It never blocks: when nothing more can be queued it
	// returns ErrFull and rec is dropped.
	Push(ctx context.Context, rec *api.Record) error
	// Close releases the channel. Records not yet sent are dropped.
	Close() error
}

// Session is the set of channels a client holds. Snapshot is closed after
// bootstrap; the others live until shutdown.
type Session struct {
	// ID identifies the session in logs.
	ID string

	Snapshot   Requester
	Subscriber Subscriber
	Updates    Pusher
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context) (*Session, error)
}
