// Package inproc provides an in-process transport: a Hub plays the part of
// the publishing authority's three endpoints so that clients can run inside
// the same process, in tests or when embedding.
package inproc

import (
	"context"
	"sync"

	"code.cloudfoundry.org/clock"
	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/transport"
	"github.com/docker/clonekit/watch"
	events "github.com/docker/go-events"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const defaultPushBuffer = 64

// Config configures a Hub.
type Config struct {
	// Collector receives every record pushed by a client, as an
	// *api.Record event. Required.
	Collector events.Sink

	// Clock is used for receive timeouts. Defaults to the wall clock.
	Clock clock.Clock

	// PushBuffer is the number of pushed records a session holds before
	// Push returns transport.ErrFull.
	PushBuffer int
}

// Hub connects in-process clients to a snapshot, an update stream and a
// collector.
type Hub struct {
	config  Config
	updates *watch.Queue

	mu       sync.Mutex
	snapshot [][]byte
	sequence int64

	closeOnce sync.Once
	closed    chan struct{}
}

var _ transport.Dialer = &Hub{}

// NewHub returns a hub with an empty snapshot at sequence 0.
func NewHub(config Config) (*Hub, error) {
	if config.Collector == nil {
		return nil, errors.New("inproc: collector required")
	}
	if config.Clock == nil {
		config.Clock = clock.NewClock()
	}
	if config.PushBuffer <= 0 {
		config.PushBuffer = defaultPushBuffer
	}

	return &Hub{
		config:  config,
		updates: watch.NewQueue(0),
		closed:  make(chan struct{}),
	}, nil
}

// SetSnapshot replaces what the hub answers to snapshot requests: records,
// then a terminator carrying sequence.
func (h *Hub) SetSnapshot(records []*api.Record, sequence int64) error {
	frames := make([][]byte, 0, len(records))
	for _, rec := range records {
		data, err := rec.Marshal()
		if err != nil {
			return errors.Wrapf(err, "inproc: encode %q", rec.Key)
		}
		frames = append(frames, data)
	}

	h.mu.Lock()
	h.snapshot = frames
	h.sequence = sequence
	h.mu.Unlock()
	return nil
}

// SetSnapshotFrames is SetSnapshot with pre-encoded frames, which may be
// malformed.
func (h *Hub) SetSnapshotFrames(frames [][]byte, sequence int64) {
	h.mu.Lock()
	h.snapshot = frames
	h.sequence = sequence
	h.mu.Unlock()
}

// Publish broadcasts rec to every subscriber.
func (h *Hub) Publish(rec *api.Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return errors.Wrapf(err, "inproc: encode %q", rec.Key)
	}
	h.updates.Publish(watch.Event{Topic: rec.Key, Frame: data})
	return nil
}

// PublishFrame broadcasts raw bytes to every subscriber.
func (h *Hub) PublishFrame(frame []byte) {
	h.updates.Publish(watch.Event{Frame: frame})
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	return h.updates.Len()
}

// Close tears the hub down. Every session sees transport.ErrClosed.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.closed)
		h.updates.Close()
	})
}

// Dial opens a session on the hub.
func (h *Hub) Dial(ctx context.Context) (*transport.Session, error) {
	select {
	case <-h.closed:
		return nil, transport.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	id := uuid.New().String()
	log.G(ctx).WithField("session.id", id).Debug("inproc: session opened")

	return &transport.Session{
		ID:         id,
		Snapshot:   &requester{hub: h, closed: make(chan struct{})},
		Subscriber: newSubscriber(h),
		Updates:    newPusher(h),
	}, nil
}

func (h *Hub) snapshotFrames() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	frames := make([][]byte, 0, len(h.snapshot)+1)
	frames = append(frames, h.snapshot...)
	terminator, _ := api.NewTerminator(h.sequence).Marshal()
	return append(frames, terminator)
}
