package grpc

import (
	"context"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// Client is a typed client of connd.v1.Manager. Errors are converted back into
// the domain taxonomy.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewClient(conn), conn, nil
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// WithBearer returns a copy of c that authenticates every call with token.
func (c *Client) WithBearer(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return FromStatus(c.conn.Invoke(WithToken(ctx, c.token), method, in, out))
}

func (c *Client) ListServices(ctx context.Context) ([]string, error) {
	out := new(structpb.ListValue)
	if err := c.invoke(ctx, MethodListServices, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(out.GetValues()))
	for _, v := range out.GetValues() {
		paths = append(paths, v.GetStringValue())
	}
	return paths, nil
}

func (c *Client) GetProperties(ctx context.Context, path string) (map[string]any, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, MethodGetProperties, wrapperspb.String(path), out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) SetProperty(ctx context.Context, path, name string, value any) error {
	in, err := structpb.NewStruct(map[string]any{"path": path, "name": name, "value": value})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
	}
	return c.invoke(ctx, MethodSetProperty, in, new(emptypb.Empty))
}

func (c *Client) Connect(ctx context.Context, path string) error {
	return c.invoke(ctx, MethodConnect, wrapperspb.String(path), new(emptypb.Empty))
}

func (c *Client) Disconnect(ctx context.Context, path string) error {
	return c.invoke(ctx, MethodDisconnect, wrapperspb.String(path), new(emptypb.Empty))
}

func (c *Client) Remove(ctx context.Context, path string) error {
	return c.invoke(ctx, MethodRemove, wrapperspb.String(path), new(emptypb.Empty))
}

func (c *Client) MoveBefore(ctx context.Context, path, target string) error {
	return c.move(ctx, MethodMoveBefore, path, target)
}

func (c *Client) MoveAfter(ctx context.Context, path, target string) error {
	return c.move(ctx, MethodMoveAfter, path, target)
}

func (c *Client) move(ctx context.Context, method, path, target string) error {
	in, err := structpb.NewStruct(map[string]any{"path": path, "target": target})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArguments, err)
	}
	return c.invoke(ctx, method, in, new(emptypb.Empty))
}

// Watch streams property changes to fn until ctx is cancelled or the server
// ends the stream.
func (c *Client) Watch(ctx context.Context, fn func(domain.PropertyChange)) error {
	desc := &ServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(WithToken(ctx, c.token), desc, MethodWatchProperties)
	if err != nil {
		return FromStatus(err)
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return FromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return FromStatus(err)
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return FromStatus(err)
		}
		fields := msg.GetFields()
		fn(domain.PropertyChange{
			Path:  fields["path"].GetStringValue(),
			Name:  fields["name"].GetStringValue(),
			Value: fields["value"].AsInterface(),
		})
	}
}
