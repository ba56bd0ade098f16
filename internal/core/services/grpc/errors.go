package grpc

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/telemetry"
)

var kindCodes = map[string]codes.Code{
	"InvalidArguments": codes.InvalidArgument,
	"PermissionDenied": codes.PermissionDenied,
	"NotSupported":     codes.FailedPrecondition,
	"NotImplemented":   codes.Unimplemented,
	"NoCarrier":        codes.Unavailable,
	"NotFound":         codes.NotFound,
	"AlreadySet":       codes.AlreadyExists,
	"InProgress":       codes.Aborted,
	"Failed":           codes.Internal,
}

var codeErrors = map[codes.Code]error{
	codes.InvalidArgument:    domain.ErrInvalidArguments,
	codes.PermissionDenied:   domain.ErrPermissionDenied,
	codes.Unauthenticated:    domain.ErrPermissionDenied,
	codes.FailedPrecondition: domain.ErrNotSupported,
	codes.Unimplemented:      domain.ErrNotImplemented,
	codes.Unavailable:        domain.ErrNoCarrier,
	codes.NotFound:           domain.ErrNotFound,
	codes.AlreadyExists:      domain.ErrAlreadySet,
	codes.Aborted:            domain.ErrInProgress,
	codes.Internal:           domain.ErrOperationFailed,
}

// toStatus converts a domain error into a gRPC status error and counts it.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	kind := domain.ErrorKind(err)
	telemetry.BoundaryErrors.WithLabelValues(kind).Inc()
	return status.Error(kindCodes[kind], err.Error())
}

// FromStatus converts a status error returned by the Manager service back into
// the domain error taxonomy. Errors without a known code are returned as is.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	base, ok := codeErrors[st.Code()]
	if !ok {
		return err
	}
	if errors.Is(err, base) {
		return err
	}
	return fmt.Errorf("%w: %s", base, st.Message())
}
