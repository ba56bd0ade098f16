package domain

import "errors"

// Error taxonomy shared by the core and mapped to transport errors at the edges.
var (
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrPermissionDenied = errors.New("permission denied")
	ErrOperationFailed  = errors.New("operation failed")
	ErrNotSupported     = errors.New("not supported")
	ErrNotImplemented   = errors.New("not implemented")
	ErrNoCarrier        = errors.New("no carrier")
	ErrNotFound         = errors.New("not found")
	ErrAlreadySet       = errors.New("already set")
	// ErrInProgress means an operation was started and completes later.
	// It is never surfaced to callers as a failure.
	ErrInProgress = errors.New("operation in progress")
)

// ErrorKind names the taxonomy entry err belongs to, "" when it is outside it.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArguments):
		return "InvalidArguments"
	case errors.Is(err, ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, ErrNotSupported):
		return "NotSupported"
	case errors.Is(err, ErrNotImplemented):
		return "NotImplemented"
	case errors.Is(err, ErrNoCarrier):
		return "NoCarrier"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrAlreadySet):
		return "AlreadySet"
	case errors.Is(err, ErrInProgress):
		return "InProgress"
	}
	return "Failed"
}
