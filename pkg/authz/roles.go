package authz

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Role is one of the fixed platform roles. The set is closed: every switch
// over Role in this package handles all six variants.
type Role uint32

const (
	RoleNone Role = iota
	RolePatient
	RoleStaff
	RoleOptometrist
	RoleOphthalmologist
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleNone:            "none",
	RolePatient:         "patient",
	RoleStaff:           "staff",
	RoleOptometrist:     "optometrist",
	RoleOphthalmologist: "ophthalmologist",
	RoleAdmin:           "admin",
}

// String returns the wire name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", uint32(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole maps a wire name back to a Role.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("unknown role: %q", s)
}

// MarshalJSON encodes the role as its wire name.
func (r Role) MarshalJSON() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid role %d", uint32(r))
	}
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a role from its wire name.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Permission is a single grantable capability. Like Role, the set is closed.
type Permission uint32

const (
	PermissionReadAnyRecord Permission = iota + 1
	PermissionWriteRecord
	PermissionManageAccess
	PermissionManageUsers
	PermissionSystemAdmin
)

var permissionNames = map[Permission]string{
	PermissionReadAnyRecord: "read_any_record",
	PermissionWriteRecord:   "write_record",
	PermissionManageAccess:  "manage_access",
	PermissionManageUsers:   "manage_users",
	PermissionSystemAdmin:   "system_admin",
}

// String returns the wire name of the permission.
func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("permission(%d)", uint32(p))
}

// Valid reports whether p is one of the defined permissions.
func (p Permission) Valid() bool {
	_, ok := permissionNames[p]
	return ok
}

// ParsePermission maps a wire name back to a Permission.
func ParsePermission(s string) (Permission, error) {
	for p, name := range permissionNames {
		if name == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown permission: %q", s)
}

// MarshalJSON encodes the permission as its wire name.
func (p Permission) MarshalJSON() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid permission %d", uint32(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a permission from its wire name.
func (p *Permission) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParsePermission(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PermissionSet is a bitmask over the closed permission enumeration.
// Membership checks are O(1), which keeps the resolver's precedence rules
// cheap to evaluate and easy to reason about.
type PermissionSet uint32

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	var s PermissionSet
	for _, p := range perms {
		s = s.Add(p)
	}
	return s
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	return s&(1<<uint32(p)) != 0
}

// Add returns the set with p included.
func (s PermissionSet) Add(p Permission) PermissionSet {
	return s | (1 << uint32(p))
}

// Remove returns the set with p excluded.
func (s PermissionSet) Remove(p Permission) PermissionSet {
	return s &^ (1 << uint32(p))
}

// Empty reports whether the set holds no permissions.
func (s PermissionSet) Empty() bool {
	return s == 0
}

// Permissions expands the set into a sorted slice.
func (s PermissionSet) Permissions() []Permission {
	var perms []Permission
	for p := range permissionNames {
		if s.Has(p) {
			perms = append(perms, p)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// MarshalJSON encodes the set as a sorted list of wire names.
func (s PermissionSet) MarshalJSON() ([]byte, error) {
	perms := s.Permissions()
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.String())
	}
	return json.Marshal(names)
}

// UnmarshalJSON decodes a set from a list of wire names.
func (s *PermissionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set PermissionSet
	for _, name := range names {
		p, err := ParsePermission(name)
		if err != nil {
			return err
		}
		set = set.Add(p)
	}
	*s = set
	return nil
}

// BasePermissions returns the permissions a role holds implicitly, before any
// per-user overlays, group memberships, or delegations are considered. It is
// a pure, total function over the closed role set: patients hold no global
// permissions because they act on their own resources through ownership
// checks in the calling workflow, not through this catalog.
func BasePermissions(role Role) PermissionSet {
	switch role {
	case RoleAdmin:
		return NewPermissionSet(
			PermissionSystemAdmin,
			PermissionManageUsers,
			PermissionWriteRecord,
			PermissionManageAccess,
			PermissionReadAnyRecord,
		)
	case RoleOphthalmologist, RoleOptometrist:
		return NewPermissionSet(
			PermissionManageUsers,
			PermissionWriteRecord,
			PermissionManageAccess,
			PermissionReadAnyRecord,
		)
	case RoleStaff:
		return NewPermissionSet(PermissionManageUsers)
	case RolePatient, RoleNone:
		return 0
	default:
		return 0
	}
}
