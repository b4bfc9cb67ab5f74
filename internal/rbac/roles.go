package rbac

// Role names. Keep these stable; they are embedded in issued ops tokens.
const (
	RoleOwner      = "owner"
	RoleAgent      = "agent"
	RoleAnalyst    = "analyst"
	RoleSuperAdmin = "super_admin"
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

// IsKnown reports whether role is one tlctl may issue.
func IsKnown(role string) bool {
	switch role {
	case RoleOwner, RoleAgent, RoleAnalyst, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
