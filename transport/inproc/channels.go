package inproc

import (
	"context"
	"sync"
	"time"

	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/transport"
	"github.com/docker/clonekit/watch"
	events "github.com/docker/go-events"
	"github.com/pkg/errors"
)

// requester answers the snapshot request from the hub's current snapshot.
type requester struct {
	hub *Hub

	mu        sync.Mutex
	requested bool
	replies   [][]byte

	closeOnce sync.Once
	closed    chan struct{}
}

func (r *requester) Request(ctx context.Context, req *api.Record) error {
	if err := r.check(ctx); err != nil {
		return err
	}
	if req == nil || req.Key != api.SnapshotRequestKey {
		return errors.Errorf("inproc: unsupported request %v", req)
	}

	r.mu.Lock()
	r.requested = true
	r.replies = r.hub.snapshotFrames()
	r.mu.Unlock()
	return nil
}

func (r *requester) Recv(ctx context.Context) (*api.Record, error) {
	if err := r.check(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.requested {
		return nil, errors.New("inproc: recv before request")
	}
	if len(r.replies) == 0 {
		// the reply stream ended with the terminator
		return nil, transport.ErrClosed
	}

	frame := r.replies[0]
	r.replies = r.replies[1:]
	return decode(frame)
}

func (r *requester) check(ctx context.Context) error {
	select {
	case <-r.closed:
		return transport.ErrClosed
	case <-r.hub.closed:
		return transport.ErrClosed
	default:
	}
	return ctx.Err()
}

func (r *requester) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

// subscriber follows every topic published on the hub.
type subscriber struct {
	hub       *Hub
	ch        chan watch.Event
	closeOnce sync.Once
}

func newSubscriber(h *Hub) *subscriber {
	return &subscriber{
		hub: h,
		ch:  h.updates.Watch(""),
	}
}

func (s *subscriber) Recv(ctx context.Context, timeout time.Duration) (*api.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case ev, ok := <-s.ch:
		return s.event(ev, ok)
	default:
	}
	if timeout <= 0 {
		return nil, transport.ErrTimeout
	}

	timer := s.hub.config.Clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev, ok := <-s.ch:
		return s.event(ev, ok)
	case <-timer.C():
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscriber) event(ev watch.Event, ok bool) (*api.Record, error) {
	if !ok {
		return nil, transport.ErrClosed
	}
	return decode(ev.Frame)
}

func (s *subscriber) Close() error {
	s.closeOnce.Do(func() { s.hub.updates.StopWatch(s.ch) })
	return nil
}

// pusher buffers records in an events.Channel and forwards them to the
// hub's collector. A full buffer drops the record. Closing the pusher drops
// whatever is still buffered.
type pusher struct {
	hub *Hub
	ch  *events.Channel
}

func newPusher(h *Hub) *pusher {
	p := &pusher{
		hub: h,
		ch:  events.NewChannel(h.config.PushBuffer),
	}
	go p.forward()
	return p
}

func (p *pusher) forward() {
	defer p.ch.Close()

	for {
		select {
		case <-p.ch.Done():
			return
		case <-p.hub.closed:
			return
		default:
		}

		select {
		case ev := <-p.ch.C:
			if err := p.hub.config.Collector.Write(ev); err != nil {
				log.L.WithError(err).Debug("inproc: collector dropped record")
			}
		case <-p.ch.Done():
			return
		case <-p.hub.closed:
			return
		}
	}
}

func (p *pusher) Push(ctx context.Context, rec *api.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-p.ch.Done():
		return transport.ErrClosed
	default:
	}

	select {
	case p.ch.C <- rec.Copy():
		return nil
	case <-p.ch.Done():
		return transport.ErrClosed
	default:
		return transport.ErrFull
	}
}

func (p *pusher) Close() error {
	return p.ch.Close()
}

func decode(frame []byte) (*api.Record, error) {
	rec, err := api.Decode(frame)
	if err != nil {
		return nil, errors.Wrap(transport.ErrMalformed, err.Error())
	}
	return rec, nil
}
