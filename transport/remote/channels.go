package remote

import (
	"context"
	"io"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/transport"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// requester runs the Snapshot call. Recv honours the context given to
// Request, which owns the underlying stream.
type requester struct {
	conn   *grpc.ClientConn
	client api.CloneClient

	stream api.Clone_SnapshotClient
	cancel context.CancelFunc

	closeOnce sync.Once
}

func (r *requester) Request(ctx context.Context, req *api.Record) error {
	if r.stream != nil {
		return errors.New("remote: snapshot already requested")
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := r.client.Snapshot(streamCtx, req)
	if err != nil {
		cancel()
		return classify(ctx, err)
	}
	r.stream = stream
	r.cancel = cancel
	return nil
}

func (r *requester) Recv(ctx context.Context) (*api.Record, error) {
	if r.stream == nil {
		return nil, errors.New("remote: recv before request")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := r.stream.Recv()
	if err != nil {
		return nil, classify(ctx, err)
	}
	return decode(frame)
}

func (r *requester) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		err = r.conn.Close()
	})
	return err
}

// subscriber pumps the Subscribe stream into an unbuffered channel so that
// Recv can wait on a message, a timer and the context at once.
type subscriber struct {
	conn   *grpc.ClientConn
	clock  clock.Clock
	cancel context.CancelFunc

	frames chan api.Frame
	done   chan struct{}
	err    error // valid once done is closed

	closeOnce sync.Once
	closed    chan struct{}
}

func newSubscriber(ctx context.Context, conn *grpc.ClientConn, clk clock.Clock) (*subscriber, error) {
	// The stream outlives the dial context; Close ends it.
	streamCtx, cancel := context.WithCancel(log.WithLogger(context.Background(), log.G(ctx)))

	// An empty key subscribes to every topic.
	stream, err := api.NewCloneClient(conn).Subscribe(streamCtx, &api.Record{})
	if err != nil {
		cancel()
		return nil, err
	}

	s := &subscriber{
		conn:   conn,
		clock:  clk,
		cancel: cancel,
		frames: make(chan api.Frame),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go s.pump(streamCtx, stream)
	return s, nil
}

func (s *subscriber) pump(ctx context.Context, stream api.Clone_SubscribeClient) {
	defer close(s.done)

	for {
		frame, err := stream.Recv()
		if err != nil {
			s.err = err
			log.G(ctx).WithError(err).Debug("remote: subscribe stream ended")
			return
		}

		select {
		case s.frames <- frame:
		case <-s.closed:
			return
		}
	}
}

func (s *subscriber) Recv(ctx context.Context, timeout time.Duration) (*api.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case frame := <-s.frames:
		return decode(frame)
	case <-s.closed:
		return nil, transport.ErrClosed
	case <-s.done:
		return nil, s.teardown()
	default:
	}
	if timeout <= 0 {
		return nil, transport.ErrTimeout
	}

	timer := s.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-s.frames:
		return decode(frame)
	case <-s.closed:
		return nil, transport.ErrClosed
	case <-s.done:
		return nil, s.teardown()
	case <-timer.C():
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *subscriber) teardown() error {
	if s.err == nil || s.err == io.EOF {
		return transport.ErrClosed
	}
	return errors.Wrap(transport.ErrClosed, status.Convert(s.err).Message())
}

func (s *subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
		err = s.conn.Close()
	})
	return err
}

// pusher holds the Publish stream open for the life of the session. Records
// are queued and sent from a separate goroutine, so Push never waits on
// flow control. Close cancels the stream instead of half-closing it, so
// records still queued are dropped.
type pusher struct {
	conn   *grpc.ClientConn
	stream api.Clone_PublishClient
	cancel context.CancelFunc

	queue chan *api.Record
	done  chan struct{}
	err   error // valid once done is closed

	closeOnce sync.Once
	closed    chan struct{}
}

func newPusher(ctx context.Context, conn *grpc.ClientConn, buffer int) (*pusher, error) {
	streamCtx, cancel := context.WithCancel(log.WithLogger(context.Background(), log.G(ctx)))
	stream, err := api.NewCloneClient(conn).Publish(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	p := &pusher{
		conn:   conn,
		stream: stream,
		cancel: cancel,
		queue:  make(chan *api.Record, buffer),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go p.send(streamCtx)
	return p, nil
}

func (p *pusher) send(ctx context.Context) {
	defer close(p.done)

	for {
		select {
		case rec := <-p.queue:
			if err := p.stream.Send(rec); err != nil {
				p.err = err
				log.G(ctx).WithError(err).Debug("remote: publish stream ended")
				return
			}
		case <-p.closed:
			return
		}
	}
}

func (p *pusher) Push(ctx context.Context, rec *api.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-p.closed:
		return transport.ErrClosed
	case <-p.done:
		if p.err == nil {
			return transport.ErrClosed
		}
		return classify(ctx, p.err)
	default:
	}

	select {
	case p.queue <- rec.Copy():
		return nil
	default:
		return transport.ErrFull
	}
}

func (p *pusher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		p.cancel()
		err = p.conn.Close()
	})
	return err
}

// classify maps stream errors onto the transport errors. Local
// cancellation wins over whatever the stream reported.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == io.EOF {
		return transport.ErrClosed
	}
	switch status.Code(err) {
	case codes.Canceled, codes.Unavailable, codes.Aborted:
		return errors.Wrap(transport.ErrClosed, status.Convert(err).Message())
	}
	return err
}

func decode(frame api.Frame) (*api.Record, error) {
	rec, err := api.Decode(frame)
	if err != nil {
		return nil, errors.Wrap(transport.ErrMalformed, err.Error())
	}
	return rec, nil
}
