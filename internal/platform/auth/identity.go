package auth

import (
	"context"
)

// Role is the closed set of roles the platform recognizes. Authorization
// decisions match exhaustively on this type; there are no ad hoc role
// strings anywhere else in the codebase.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a token claim to a Role. Unknown values are rejected so a
// misconfigured identity provider cannot mint an unexpected role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Permission names a capability granted to a role.
type Permission string

const (
	// PermReadOwnRecords allows reading records the caller owns (uid == patient id).
	PermReadOwnRecords Permission = "records:read-own"
	// PermWriteOwnRecords allows writing records the caller owns.
	PermWriteOwnRecords Permission = "records:write-own"
	// PermReadAnyRecord allows reading any patient's records.
	PermReadAnyRecord Permission = "records:read-any"
	// PermWriteAnyRecord allows writing any patient's records.
	PermWriteAnyRecord Permission = "records:write-any"
	// PermManageProfiles allows creating and updating patient/doctor profiles.
	PermManageProfiles Permission = "profiles:manage"
)

// rolePermissions is the fixed permission table. Changing what a role may do
// means changing this table, not scattering string checks.
var rolePermissions = map[Role]map[Permission]bool{
	RolePatient: {
		PermReadOwnRecords:  true,
		PermWriteOwnRecords: true,
	},
	RoleDoctor: {
		PermReadOwnRecords:  true,
		PermWriteOwnRecords: true,
		PermReadAnyRecord:   true,
		PermWriteAnyRecord:  true,
	},
	RoleAdmin: {
		PermReadOwnRecords:  true,
		PermWriteOwnRecords: true,
		PermReadAnyRecord:   true,
		PermWriteAnyRecord:  true,
		PermManageProfiles:  true,
	},
}

// Can reports whether the role holds the permission.
func (r Role) Can(p Permission) bool {
	return rolePermissions[r][p]
}

// Identity is the authenticated principal attached to every request after
// token verification. The claims are trusted as already verified by the
// identity provider.
type Identity struct {
	UID           string
	Role          Role
	EmailVerified bool
}

type identityContextKey struct{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext retrieves the authenticated identity, or nil when the
// request was not authenticated.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
