package ports

import (
	"context"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// SecurityModule is a pluggable privilege checker.
type SecurityModule interface {
	Name() string
	Priority() int
	// CheckPrivilege returns nil to grant, domain.ErrPermissionDenied to deny
	// and domain.ErrNotSupported to leave the decision to the next module.
	// caller is nil for anonymous calls.
	CheckPrivilege(ctx context.Context, caller *domain.User, privilege domain.Privilege) error
}

// PrivilegeChecker decides whether the caller attached to ctx holds a privilege.
type PrivilegeChecker interface {
	CheckPrivilege(ctx context.Context, privilege domain.Privilege) error
}
