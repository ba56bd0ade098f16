package grpc

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// GrpcServer implements ManagerServer on top of a ports.ServiceManager.
type GrpcServer struct {
	manager     ports.ServiceManager
	changes     ports.ChangeSource
	watchBuffer int
}

var _ ManagerServer = (*GrpcServer)(nil)

// NewGrpcServer builds a grpc.Server with the Manager service registered.
// auth may be nil, in which case every call is anonymous.
func NewGrpcServer(manager ports.ServiceManager, changes ports.ChangeSource, auth ports.AuthService, opts ...grpc.ServerOption) *grpc.Server {
	if auth != nil {
		opts = append(opts,
			grpc.ChainUnaryInterceptor(UnaryAuthInterceptor(auth)),
			grpc.ChainStreamInterceptor(StreamAuthInterceptor(auth)),
		)
	}
	s := grpc.NewServer(opts...)
	s.RegisterService(&ServiceDesc, &GrpcServer{manager: manager, changes: changes, watchBuffer: defaultWatchBuffer})
	return s
}

func (s *GrpcServer) ListServices(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	paths := s.manager.ListServices(ctx)
	values := make([]*structpb.Value, 0, len(paths))
	for _, p := range paths {
		values = append(values, structpb.NewStringValue(p))
	}
	return &structpb.ListValue{Values: values}, nil
}

func (s *GrpcServer) GetProperties(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	props, err := s.manager.GetProperties(ctx, in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := structpb.NewStruct(wireProperties(props))
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: %v", domain.ErrOperationFailed, err))
	}
	return out, nil
}

func (s *GrpcServer) SetProperty(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	fields := in.GetFields()
	value, ok := fields["value"]
	if !ok {
		return nil, toStatus(fmt.Errorf("%w: missing value", domain.ErrInvalidArguments))
	}
	path := fields["path"].GetStringValue()
	name := fields["name"].GetStringValue()

	if err := s.manager.SetProperty(ctx, path, name, value.AsInterface()); err != nil {
		log.Printf("[GRPC] SetProperty %s %s: %v", path, name, err)
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *GrpcServer) Connect(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return empty(s.manager.Connect(ctx, in.GetValue()))
}

func (s *GrpcServer) Disconnect(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return empty(s.manager.Disconnect(ctx, in.GetValue()))
}

func (s *GrpcServer) Remove(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	return empty(s.manager.Remove(ctx, in.GetValue()))
}

func (s *GrpcServer) MoveBefore(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	path, target := moveArgs(in)
	return empty(s.manager.MoveBefore(ctx, path, target))
}

func (s *GrpcServer) MoveAfter(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	path, target := moveArgs(in)
	return empty(s.manager.MoveAfter(ctx, path, target))
}

// wireProperties widens small integers to int, which structpb encodes as a
// number.
func wireProperties(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = wireValue(v)
	}
	return out
}

func moveArgs(in *structpb.Struct) (string, string) {
	fields := in.GetFields()
	return fields["path"].GetStringValue(), fields["target"].GetStringValue()
}

func empty(err error) (*emptypb.Empty, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}
