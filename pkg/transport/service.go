package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// serviceName is the fully-qualified gRPC service name, chosen to match
// what protoc-gen-go-grpc would emit for a "Channel" service in a
// "skitter.transport" package.
const serviceName = "skitter.transport.Channel"

// ChannelServer is implemented by the Channel RPC's server side: one
// bidirectional stream of structpb.Struct envelopes per connected node,
// plus a unary CreateWorker call used to instantiate a worker on a
// remote node (spec.md §4.5's remote_worker).
type ChannelServer interface {
	Stream(ChannelStreamServer) error
	CreateWorker(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ChannelStreamServer is the server-side handle to one Channel stream.
type ChannelStreamServer interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ServerStream
}

type channelStreamServer struct {
	grpc.ServerStream
}

func (x *channelStreamServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func (x *channelStreamServer) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func _Channel_Stream_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(ChannelServer).Stream(&channelStreamServer{ServerStream: stream})
}

func _Channel_CreateWorker_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChannelServer).CreateWorker(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/CreateWorker"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChannelServer).CreateWorker(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc describes the Channel service to grpc.Server.RegisterService,
// the hand-authored equivalent of what protoc-gen-go-grpc would generate
// for a service with one unary and one bidirectional-streaming method.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ChannelServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateWorker",
			Handler:    _Channel_CreateWorker_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       _Channel_Stream_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "skitter/transport/channel.proto",
}

// ChannelClient is implemented by the Channel RPC's client side.
type ChannelClient interface {
	Stream(ctx context.Context, opts ...grpc.CallOption) (ChannelStreamClient, error)
	CreateWorker(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// ChannelStreamClient is the client-side handle to one Channel stream.
type ChannelStreamClient interface {
	Send(*structpb.Struct) error
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type channelClient struct {
	cc grpc.ClientConnInterface
}

// NewChannelClient wraps a dialed connection for calling the Channel RPC.
func NewChannelClient(cc grpc.ClientConnInterface) ChannelClient {
	return &channelClient{cc: cc}
}

func (c *channelClient) Stream(ctx context.Context, opts ...grpc.CallOption) (ChannelStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+serviceName+"/Stream", opts...)
	if err != nil {
		return nil, err
	}
	return &channelStreamClient{ClientStream: stream}, nil
}

func (c *channelClient) CreateWorker(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/CreateWorker", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type channelStreamClient struct {
	grpc.ClientStream
}

func (x *channelStreamClient) Send(m *structpb.Struct) error {
	return x.ClientStream.SendMsg(m)
}

func (x *channelStreamClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
