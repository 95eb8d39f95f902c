package gate

import "strings"

// Role is an ordered enumeration of caller roles.
type Role string

const (
	RoleViewer     Role = "viewer"
	RoleAnalyst    Role = "analyst"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// RoleUnknown marks a role value that could not be parsed. It ranks below
// every valid role so that authorization fails closed.
const RoleUnknown Role = ""

var roleRanks = map[Role]int{
	RoleViewer:     0,
	RoleAnalyst:    1,
	RoleAdmin:      2,
	RoleSuperAdmin: 3,
}

// ParseRole normalizes an arbitrary role representation into a Role.
// Unrecognized values return RoleUnknown and false; they never panic. Role
// values must be normalized here, at the boundary, not compared as raw
// strings at call sites.
func ParseRole(value string) (Role, bool) {
	normalized := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRanks[normalized]; !ok {
		return RoleUnknown, false
	}
	return normalized, true
}

// Rank returns the role's position in the total order. Unknown roles rank -1,
// below viewer.
func (r Role) Rank() int {
	if rank, ok := roleRanks[r]; ok {
		return rank
	}
	return -1
}

// Valid reports whether the role is a member of the enumeration.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// AtLeast reports whether the role satisfies the required minimum role.
// Unknown roles never satisfy anything, including RoleUnknown itself.
func (r Role) AtLeast(required Role) bool {
	rank := r.Rank()
	requiredRank := required.Rank()
	if rank < 0 || requiredRank < 0 {
		return false
	}
	return rank >= requiredRank
}

// Roles returns every valid role ordered from lowest to highest rank.
func Roles() []Role {
	return []Role{RoleViewer, RoleAnalyst, RoleAdmin, RoleSuperAdmin}
}
