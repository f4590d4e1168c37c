package authz

import (
	"errors"
	"fmt"
)

// Role is a named identity tier. The set of roles is closed and fixed at
// process start; unknown values are rejected by ParseRole rather than
// silently mapped to a default.
type Role string

// Built-in roles ordered from least to most privileged.
const (
	RoleGuest      Role = "guest"
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// RoleSuper is the designated bypass role: RoleCheck always passes for it
// regardless of the allowed list. Kept as a distinct name so the bypass
// reads as intentional at call sites.
const RoleSuper = RoleSuperAdmin

// Permission is an atomic capability. Flat namespace, dot-separated by
// module, matching the permission constants below.
type Permission string

// Forum permissions grouped by module.
const (
	PermPostsCreate Permission = "posts.create"
	PermPostsEdit   Permission = "posts.edit"
	PermPostsDelete Permission = "posts.delete"

	PermCommentsCreate Permission = "comments.create"
	PermCommentsDelete Permission = "comments.delete"

	PermContentManage Permission = "content.manage"
	PermUsersManage   Permission = "users.manage"
	PermSystemManage  Permission = "system.manage"
)

// ErrUnknownRole indicates a role value outside the closed enumeration.
var ErrUnknownRole = errors.New("authz: unknown role")

// ErrUnknownPermission indicates a permission value outside the closed enumeration.
var ErrUnknownPermission = errors.New("authz: unknown permission")

var allRoles = map[Role]struct{}{
	RoleGuest:      {},
	RoleUser:       {},
	RoleModerator:  {},
	RoleAdmin:      {},
	RoleSuperAdmin: {},
}

var allPermissions = map[Permission]struct{}{
	PermPostsCreate:    {},
	PermPostsEdit:      {},
	PermPostsDelete:    {},
	PermCommentsCreate: {},
	PermCommentsDelete: {},
	PermContentManage:  {},
	PermUsersManage:    {},
	PermSystemManage:   {},
}

// ParseRole validates a raw role string against the closed enumeration.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	if _, ok := allRoles[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// ParsePermission validates a raw permission string.
func ParsePermission(raw string) (Permission, error) {
	perm := Permission(raw)
	if _, ok := allPermissions[perm]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
	}
	return perm, nil
}

// Roles returns every declared role.
func Roles() []Role {
	roles := make([]Role, 0, len(allRoles))
	for r := range allRoles {
		roles = append(roles, r)
	}
	return roles
}

// Permissions returns every declared permission.
func Permissions() []Permission {
	perms := make([]Permission, 0, len(allPermissions))
	for p := range allPermissions {
		perms = append(perms, p)
	}
	return perms
}
