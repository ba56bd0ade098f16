package grpc

import (
	"context"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

const defaultWatchBuffer = 64

// streamObserver forwards registry changes to one watch stream. The registry
// delivers synchronously, so a slow client loses changes instead of stalling
// it.
type streamObserver struct {
	ch chan domain.PropertyChange
}

func (o *streamObserver) OnPropertyChanged(_ context.Context, change domain.PropertyChange) {
	select {
	case o.ch <- change:
	default:
		log.Printf("[GRPC] watch buffer full, dropping %s %s", change.Path, change.Name)
	}
}

func (s *GrpcServer) WatchProperties(_ *emptypb.Empty, stream grpc.ServerStream) error {
	if s.changes == nil {
		return toStatus(domain.ErrNotSupported)
	}

	obs := &streamObserver{ch: make(chan domain.PropertyChange, s.watchBuffer)}
	s.changes.AddObserver(obs)
	defer s.changes.RemoveObserver(obs)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-obs.ch:
			msg, err := structpb.NewStruct(map[string]any{
				"path":  change.Path,
				"name":  change.Name,
				"value": wireValue(change.Value),
			})
			if err != nil {
				log.Printf("[GRPC] watch encode %s: %v", change.Name, err)
				continue
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

func wireValue(v any) any {
	if u, ok := v.(uint8); ok {
		return int(u)
	}
	return v
}
