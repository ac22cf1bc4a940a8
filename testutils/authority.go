package testutils

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/akutz/memconn"
	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/watch"
	"github.com/docker/go-connections/sockets"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const memNetwork = "memu"

// Authority is a fake publishing authority serving the clone service on
// three listeners, one per channel. It answers snapshots from a
// fixed state, relays whatever the test broadcasts to subscribers and records
// every update clients push.
type Authority struct {
	t *testing.T

	mu       sync.Mutex
	snapshot []api.Frame
	sequence int64

	updates   *watch.Queue
	published chan *api.Record

	servers     []*grpc.Server
	listeners   []net.Listener
	dialOptions []grpc.DialOption

	// Endpoint addresses in proto://address form.
	SnapshotEndpoint  string
	SubscribeEndpoint string
	UpdatesEndpoint   string
}

// NewAuthority starts an authority on in-memory listeners. It is stopped
// when the test ends.
func NewAuthority(t *testing.T) *Authority {
	a := newAuthority(t)
	a.dialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			return memconn.Dial(memNetwork, addr)
		}),
	}

	prefix := "clone-test-" + uuid.New().String()
	listen := func(channel string) string {
		// the memconn package lets us avoid real sockets, which keeps the
		// tests portable.
		name := prefix + "-" + channel
		lis, err := memconn.Listen(memNetwork, name)
		require.NoError(t, err)
		return a.serve(lis, memNetwork+"://"+name)
	}
	a.SnapshotEndpoint = listen("snapshot")
	a.SubscribeEndpoint = listen("subscribe")
	a.UpdatesEndpoint = listen("updates")
	return a
}

// NewTCPAuthority starts an authority on loopback TCP listeners. Clients
// reach it with the default dial options.
func NewTCPAuthority(t *testing.T) *Authority {
	a := newAuthority(t)
	listen := func() string {
		lis, err := sockets.NewTCPSocket("127.0.0.1:0", nil)
		require.NoError(t, err)
		return a.serve(lis, "tcp://"+lis.Addr().String())
	}
	a.SnapshotEndpoint = listen()
	a.SubscribeEndpoint = listen()
	a.UpdatesEndpoint = listen()
	return a
}

func newAuthority(t *testing.T) *Authority {
	a := &Authority{
		t:         t,
		updates:   watch.NewQueue(0),
		published: make(chan *api.Record, 1024),
	}
	t.Cleanup(a.Stop)
	return a
}

func (a *Authority) serve(lis net.Listener, endpoint string) string {
	s := grpc.NewServer()
	api.RegisterCloneServer(s, a)
	go s.Serve(lis)

	a.servers = append(a.servers, s)
	a.listeners = append(a.listeners, lis)
	return endpoint
}

// DialOptions returns the dial options a client needs to reach the
// authority's listeners.
func (a *Authority) DialOptions() []grpc.DialOption {
	return a.dialOptions
}

// SetSnapshot sets the state served to snapshot requests.
func (a *Authority) SetSnapshot(records []*api.Record, sequence int64) {
	frames := make([]api.Frame, 0, len(records))
	for _, rec := range records {
		data, err := rec.Marshal()
		require.NoError(a.t, err)
		frames = append(frames, data)
	}
	a.SetSnapshotFrames(frames, sequence)
}

// SetSnapshotFrames sets the snapshot from raw frames, which may be
// malformed.
func (a *Authority) SetSnapshotFrames(frames []api.Frame, sequence int64) {
	a.mu.Lock()
	a.snapshot = frames
	a.sequence = sequence
	a.mu.Unlock()
}

// Broadcast sends rec to every subscriber whose subscription prefix matches
// its key.
func (a *Authority) Broadcast(rec *api.Record) {
	data, err := rec.Marshal()
	require.NoError(a.t, err)
	a.updates.Publish(watch.Event{Topic: rec.Key, Frame: data})
}

// BroadcastFrame sends raw bytes to every subscriber.
func (a *Authority) BroadcastFrame(frame api.Frame) {
	a.updates.Publish(watch.Event{Frame: frame})
}

// WaitForSubscribers blocks until n subscriptions are active.
func (a *Authority) WaitForSubscribers(n int) {
	require.NoError(a.t, PollFunc(func() error {
		if got := a.updates.Len(); got != n {
			return fmt.Errorf("%d subscribers, want %d", got, n)
		}
		return nil
	}))
}

// Published returns the channel receiving pushed records.
func (a *Authority) Published() <-chan *api.Record {
	return a.published
}

// NextPublished waits for the next pushed record.
func (a *Authority) NextPublished() *api.Record {
	select {
	case rec := <-a.published:
		return rec
	case <-time.After(5 * time.Second):
		a.t.Fatal("no record published")
	}
	return nil
}

// Stop tears down every channel. Clients see their streams fail.
func (a *Authority) Stop() {
	a.updates.Close()
	for _, s := range a.servers {
		s.Stop()
	}
	for _, lis := range a.listeners {
		lis.Close()
	}
}

// Snapshot implements api.CloneServer.
func (a *Authority) Snapshot(req *api.Record, stream api.Clone_SnapshotServer) error {
	if req.Key != api.SnapshotRequestKey {
		return status.Errorf(codes.InvalidArgument, "unexpected request %q", req.Key)
	}

	a.mu.Lock()
	frames := append([]api.Frame(nil), a.snapshot...)
	sequence := a.sequence
	a.mu.Unlock()

	for _, frame := range frames {
		if err := stream.SendFrame(frame); err != nil {
			return err
		}
	}
	return stream.Send(api.NewTerminator(sequence))
}

// Subscribe implements api.CloneServer. The request key is a topic prefix.
func (a *Authority) Subscribe(req *api.Record, stream api.Clone_SubscribeServer) error {
	ch := a.updates.Watch(req.Key)
	defer a.updates.StopWatch(ch)

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return status.Error(codes.Unavailable, "authority stopped")
			}
			if err := stream.SendFrame(ev.Frame); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

// Publish implements api.CloneServer.
func (a *Authority) Publish(stream api.Clone_PublishServer) error {
	for {
		rec, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&api.Record{Key: "OK"})
		}
		if err != nil {
			return err
		}
		select {
		case a.published <- rec:
		default:
			a.t.Logf("authority: dropping published record %v", rec)
		}
	}
}
