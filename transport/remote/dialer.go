// Package remote is the gRPC transport: each clone channel is its own
// connection to its own endpoint, acquired when the session is dialed and
// released when the channel is closed.
package remote

import (
	"context"
	"net"

	"code.cloudfoundry.org/clock"
	"github.com/docker/clonekit/api"
	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/transport"
	"github.com/docker/clonekit/xnet"
	"github.com/docker/go-connections/sockets"
	"github.com/google/uuid"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
)

// Default endpoints of the publishing authority.
const (
	DefaultSnapshotEndpoint  = "tcp://localhost:5557"
	DefaultSubscribeEndpoint = "tcp://localhost:5556"
	DefaultUpdatesEndpoint   = "tcp://localhost:5558"
)

// pushBuffer is the number of records the updates channel queues before
// Push starts dropping them.
const pushBuffer = 64

// Endpoints names the three addresses a session connects to, in
// proto://address form.
type Endpoints struct {
	Snapshot  string
	Subscribe string
	Updates   string
}

// DefaultEndpoints returns the endpoints of an authority on localhost.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Snapshot:  DefaultSnapshotEndpoint,
		Subscribe: DefaultSubscribeEndpoint,
		Updates:   DefaultUpdatesEndpoint,
	}
}

// Dialer opens gRPC sessions.
type Dialer struct {
	endpoints Endpoints
	clock     clock.Clock
	opts      []grpc.DialOption
}

var _ transport.Dialer = &Dialer{}

// NewDialer returns a dialer for endpoints. The options are appended to
// the defaults (insecure transport and client metrics interceptors).
func NewDialer(endpoints Endpoints, clk clock.Clock, opts ...grpc.DialOption) *Dialer {
	if clk == nil {
		clk = clock.NewClock()
	}
	defaults := []grpc.DialOption{
		grpc.WithInsecure(),
		grpc.WithUnaryInterceptor(grpc_prometheus.UnaryClientInterceptor),
		grpc.WithStreamInterceptor(grpc_prometheus.StreamClientInterceptor),
	}
	return &Dialer{
		endpoints: endpoints,
		clock:     clk,
		opts:      append(defaults, opts...),
	}
}

// Dial connects all three channels and sends the subscription. Dial does
// not wait for the connections to come up; a channel whose endpoint is
// unreachable fails on first use.
func (d *Dialer) Dial(ctx context.Context) (*transport.Session, error) {
	id := uuid.New().String()
	ctx = log.WithLogger(ctx, log.G(ctx).WithField("session.id", id))

	var conns []*grpc.ClientConn
	fail := func(err error) (*transport.Session, error) {
		for _, conn := range conns {
			conn.Close()
		}
		return nil, err
	}

	dial := func(name, endpoint string) (*grpc.ClientConn, error) {
		proto, target, err := xnet.DialTarget(endpoint)
		if err != nil {
			return nil, errors.Wrapf(err, "remote: %s endpoint", name)
		}
		opts := d.opts
		if proto == "tcp" {
			// options given to NewDialer come later and win
			opts = append([]grpc.DialOption{grpc.WithContextDialer(dialTCP)}, d.opts...)
		}
		conn, err := grpc.DialContext(ctx, target, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "remote: dial %s %s", name, endpoint)
		}
		conns = append(conns, conn)
		log.G(ctx).WithField("endpoint", endpoint).Debugf("remote: %s channel connected", name)
		return conn, nil
	}

	snapshotConn, err := dial("snapshot", d.endpoints.Snapshot)
	if err != nil {
		return fail(err)
	}
	subscribeConn, err := dial("subscribe", d.endpoints.Subscribe)
	if err != nil {
		return fail(err)
	}
	updatesConn, err := dial("updates", d.endpoints.Updates)
	if err != nil {
		return fail(err)
	}

	sub, err := newSubscriber(ctx, subscribeConn, d.clock)
	if err != nil {
		return fail(errors.Wrap(err, "remote: subscribe"))
	}
	push, err := newPusher(ctx, updatesConn, pushBuffer)
	if err != nil {
		sub.Close()
		return fail(errors.Wrap(err, "remote: publish"))
	}

	return &transport.Session{
		ID:         id,
		Snapshot:   &requester{conn: snapshotConn, client: api.NewCloneClient(snapshotConn)},
		Subscriber: sub,
		Updates:    push,
	}, nil
}

// dialTCP connects through the proxy named by ALL_PROXY, honouring
// NO_PROXY, or directly when none is set.
func dialTCP(ctx context.Context, addr string) (net.Conn, error) {
	direct := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		direct.Deadline = deadline
	}
	dialer, err := sockets.DialerFromEnvironment(direct)
	if err != nil {
		return nil, errors.Wrap(err, "remote: proxy configuration")
	}
	if d, ok := dialer.(*net.Dialer); ok {
		return d.DialContext(ctx, "tcp", addr)
	}
	return dialer.Dial("tcp", addr)
}
