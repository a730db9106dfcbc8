package domain

// Role is the caller's role as established by the upstream identity
// collaborator. The engine trusts it; it never re-derives permissions.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleSupport  Role = "support_agent"
	RoleAuditor  Role = "auditor"
	RoleAdmin    Role = "admin"
)

// Identity is the already-authenticated caller handed to the engine at
// the boundary.
type Identity struct {
	UserID UserID
	Role   Role
}

// Staff reports whether the role may read accounts it does not own.
func (i Identity) Staff() bool {
	switch i.Role {
	case RoleSupport, RoleAuditor, RoleAdmin:
		return true
	}
	return false
}
