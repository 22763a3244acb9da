// Package rbac enforces the tenant role hierarchy: owner > admin > member.
package rbac

import (
	"github.com/loveshotsmedia/l3arn-updated/internal/shared"
)

// Role is a tenant membership role.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

// ranks is the only place hierarchy levels are declared.
var ranks = map[Role]int{
	RoleMember: 10,
	RoleAdmin:  20,
	RoleOwner:  30,
}

// ParseRole maps a role name to a Role. Unknown names fail with shared.ErrUnknownRole.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := ranks[r]; !ok {
		return "", shared.ErrUnknownRole.Wrapf("role %q", s)
	}
	return r, nil
}

// Satisfies reports whether r is at least as privileged as required.
func (r Role) Satisfies(required Role) bool {
	have, ok := ranks[r]
	if !ok {
		return false
	}
	need, ok := ranks[required]
	if !ok {
		return false
	}
	return have >= need
}

func (r Role) String() string {
	return string(r)
}

// Check fails with shared.ErrUnknownRole if role is not a known role, and with
// shared.ErrInsufficientRole if it ranks below required.
func Check(role string, required Role) error {
	have, err := ParseRole(role)
	if err != nil {
		return err
	}
	if !have.Satisfies(required) {
		return shared.ErrInsufficientRole.Wrapf("role %q does not satisfy %q", have, required).
			WithDetail("required_role", string(required))
	}
	return nil
}
