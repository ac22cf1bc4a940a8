package api

import (
	"context"

	"google.golang.org/grpc"
)

// The clone service is small enough that its descriptor is maintained by
// hand instead of generated. Messages travel with the kvmsg codec; clients
// must call with grpc.CallContentSubtype(CodecName).

const (
	cloneServiceName = "clone.Clone"

	// SnapshotMethod streams the full state followed by a terminator.
	SnapshotMethod = "/clone.Clone/Snapshot"
	// SubscribeMethod streams every update published after the call.
	SubscribeMethod = "/clone.Clone/Subscribe"
	// PublishMethod accepts updates from clients.
	PublishMethod = "/clone.Clone/Publish"
)

// CloneClient is the client API for the clone service.
type CloneClient interface {
	Snapshot(ctx context.Context, in *Record, opts ...grpc.CallOption) (Clone_SnapshotClient, error)
	Subscribe(ctx context.Context, in *Record, opts ...grpc.CallOption) (Clone_SubscribeClient, error)
	Publish(ctx context.Context, opts ...grpc.CallOption) (Clone_PublishClient, error)
}

type cloneClient struct {
	cc grpc.ClientConnInterface
}

// NewCloneClient returns a client for the clone service on cc.
func NewCloneClient(cc grpc.ClientConnInterface) CloneClient {
	return &cloneClient{cc}
}

func (c *cloneClient) Snapshot(ctx context.Context, in *Record, opts ...grpc.CallOption) (Clone_SnapshotClient, error) {
	stream, err := c.cc.NewStream(ctx, &_Clone_serviceDesc.Streams[0], SnapshotMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &cloneRecvClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *cloneClient) Subscribe(ctx context.Context, in *Record, opts ...grpc.CallOption) (Clone_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &_Clone_serviceDesc.Streams[1], SubscribeMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &cloneRecvClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *cloneClient) Publish(ctx context.Context, opts ...grpc.CallOption) (Clone_PublishClient, error) {
	stream, err := c.cc.NewStream(ctx, &_Clone_serviceDesc.Streams[2], PublishMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	return &clonePublishClient{stream}, nil
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// Clone_SnapshotClient receives the snapshot. Recv returns undecoded frames
// so that one bad record does not end the stream.
type Clone_SnapshotClient interface {
	Recv() (Frame, error)
	grpc.ClientStream
}

// Clone_SubscribeClient receives published updates as undecoded frames.
type Clone_SubscribeClient interface {
	Recv() (Frame, error)
	grpc.ClientStream
}

type cloneRecvClient struct {
	grpc.ClientStream
}

func (x *cloneRecvClient) Recv() (Frame, error) {
	var m Frame
	if err := x.ClientStream.RecvMsg(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// Clone_PublishClient sends updates to the collector.
type Clone_PublishClient interface {
	Send(*Record) error
	CloseAndRecv() (*Record, error)
	grpc.ClientStream
}

type clonePublishClient struct {
	grpc.ClientStream
}

func (x *clonePublishClient) Send(m *Record) error {
	return x.ClientStream.SendMsg(m)
}

func (x *clonePublishClient) CloseAndRecv() (*Record, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(Record)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CloneServer is the server API for the clone service.
type CloneServer interface {
	Snapshot(*Record, Clone_SnapshotServer) error
	Subscribe(*Record, Clone_SubscribeServer) error
	Publish(Clone_PublishServer) error
}

// RegisterCloneServer registers srv on s.
func RegisterCloneServer(s *grpc.Server, srv CloneServer) {
	s.RegisterService(&_Clone_serviceDesc, srv)
}

func _Clone_Snapshot_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(Record)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CloneServer).Snapshot(m, &cloneSendServer{stream})
}

func _Clone_Subscribe_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(Record)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CloneServer).Subscribe(m, &cloneSendServer{stream})
}

func _Clone_Publish_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(CloneServer).Publish(&clonePublishServer{stream})
}

// Clone_SnapshotServer sends the snapshot. SendFrame writes bytes as they
// are, which lets a server relay records it never decoded.
type Clone_SnapshotServer interface {
	Send(*Record) error
	SendFrame(Frame) error
	grpc.ServerStream
}

// Clone_SubscribeServer sends published updates.
type Clone_SubscribeServer interface {
	Send(*Record) error
	SendFrame(Frame) error
	grpc.ServerStream
}

type cloneSendServer struct {
	grpc.ServerStream
}

func (x *cloneSendServer) Send(m *Record) error {
	return x.ServerStream.SendMsg(m)
}

func (x *cloneSendServer) SendFrame(f Frame) error {
	return x.ServerStream.SendMsg(&f)
}

// Clone_PublishServer receives updates from a client.
type Clone_PublishServer interface {
	SendAndClose(*Record) error
	Recv() (*Record, error)
	grpc.ServerStream
}

type clonePublishServer struct {
	grpc.ServerStream
}

func (x *clonePublishServer) SendAndClose(m *Record) error {
	return x.ServerStream.SendMsg(m)
}

func (x *clonePublishServer) Recv() (*Record, error) {
	m := new(Record)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

var _Clone_serviceDesc = grpc.ServiceDesc{
	ServiceName: cloneServiceName,
	HandlerType: (*CloneServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Snapshot",
			Handler:       _Clone_Snapshot_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "Subscribe",
			Handler:       _Clone_Subscribe_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "Publish",
			Handler:       _Clone_Publish_Handler,
			ClientStreams: true,
		},
	},
	Metadata: "clone.proto",
}
