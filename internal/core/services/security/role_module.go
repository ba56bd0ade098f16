package security

import (
	"context"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

// RolePriority is the default priority of the role module.
const RolePriority = 0

// RoleModule grants privileges from the role of the authenticated caller.
// Admins hold every privilege, operators may modify but not read secrets,
// viewers and anonymous callers hold nothing.
type RoleModule struct {
	priority int
}

// NewRoleModule creates a role module with the given priority.
func NewRoleModule(priority int) *RoleModule {
	return &RoleModule{priority: priority}
}

func (m *RoleModule) Name() string  { return "role" }
func (m *RoleModule) Priority() int { return m.priority }

// CheckPrivilege implements ports.SecurityModule.
func (m *RoleModule) CheckPrivilege(ctx context.Context, caller *domain.User, privilege domain.Privilege) error {
	if caller == nil {
		return domain.ErrPermissionDenied
	}
	if hasPrivilege(caller.Role, privilege) {
		return nil
	}
	return domain.ErrPermissionDenied
}

func hasPrivilege(role domain.Role, privilege domain.Privilege) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleOperator:
		return privilege == domain.PrivilegeModify
	}
	return false
}

var _ ports.SecurityModule = (*RoleModule)(nil)
