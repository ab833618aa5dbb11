// Package role implements the fixed role lattice gating access to the
// shared company store (spec.md §4.8): worker < al < pl < ceo.
package role

import "github.com/hmemdev/hmem/internal/types"

// Allowed reports whether minRole is visible to a caller at the given
// role: every query over the company store restricts to min_role IN
// VisibleRoles(caller), i.e. minRole <= caller in the total order.
func Allowed(caller, minRole types.Role) bool {
	return minRole <= caller
}

// CanWriteCompany reports whether a caller may write to the shared
// company store: requires al or above (spec.md §6 tool surface table).
func CanWriteCompany(caller types.Role) bool {
	return caller >= types.RoleAL
}

// IsCurator reports whether the caller is the ceo role, authorized to
// read any agent's store, bypass the obsolete-correction requirement,
// and mark agents audited.
func IsCurator(caller types.Role) bool {
	return caller == types.RoleCEO
}
