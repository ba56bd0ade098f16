package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "connd.v1.Manager"

// Full method names, shared by server and client.
const (
	MethodListServices    = "/" + serviceName + "/ListServices"
	MethodGetProperties   = "/" + serviceName + "/GetProperties"
	MethodSetProperty     = "/" + serviceName + "/SetProperty"
	MethodConnect         = "/" + serviceName + "/Connect"
	MethodDisconnect      = "/" + serviceName + "/Disconnect"
	MethodRemove          = "/" + serviceName + "/Remove"
	MethodMoveBefore      = "/" + serviceName + "/MoveBefore"
	MethodMoveAfter       = "/" + serviceName + "/MoveAfter"
	MethodWatchProperties = "/" + serviceName + "/WatchProperties"
)

// ManagerServer is the server API of connd.v1.Manager. Messages are protobuf
// well-known types:
//
//	ListServices(Empty) ListValue            paths in selection order
//	GetProperties(StringValue) Struct        path -> properties
//	SetProperty(Struct) Empty                {path, name, value}
//	Connect/Disconnect/Remove(StringValue) Empty
//	MoveBefore/MoveAfter(Struct) Empty       {path, target}
//	WatchProperties(Empty) stream Struct     {path, name, value}
type ManagerServer interface {
	ListServices(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	GetProperties(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	SetProperty(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Connect(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Disconnect(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Remove(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	MoveBefore(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	MoveAfter(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	WatchProperties(*emptypb.Empty, grpc.ServerStream) error
}

// unary builds a method descriptor that decodes a Req and dispatches to call
// through the server's interceptor chain.
func unary[Req any](name string, call func(ManagerServer, context.Context, *Req) (any, error)) grpc.MethodDesc {
	full := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ManagerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ManagerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ManagerServer).WatchProperties(in, stream)
}

// ServiceDesc describes connd.v1.Manager for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ManagerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListServices", func(s ManagerServer, ctx context.Context, in *emptypb.Empty) (any, error) {
			return s.ListServices(ctx, in)
		}),
		unary("GetProperties", func(s ManagerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.GetProperties(ctx, in)
		}),
		unary("SetProperty", func(s ManagerServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.SetProperty(ctx, in)
		}),
		unary("Connect", func(s ManagerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.Connect(ctx, in)
		}),
		unary("Disconnect", func(s ManagerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.Disconnect(ctx, in)
		}),
		unary("Remove", func(s ManagerServer, ctx context.Context, in *wrapperspb.StringValue) (any, error) {
			return s.Remove(ctx, in)
		}),
		unary("MoveBefore", func(s ManagerServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.MoveBefore(ctx, in)
		}),
		unary("MoveAfter", func(s ManagerServer, ctx context.Context, in *structpb.Struct) (any, error) {
			return s.MoveAfter(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchProperties",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "connd/v1/manager.proto",
}
