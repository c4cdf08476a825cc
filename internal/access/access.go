// Package access implements role-based scoping. Roles are assigned per
// business unit (super_admin globally); capabilities are a fixed table,
// never stored per user.
package access

import "errors"

// ErrScopeDenied is returned whenever a caller lacks the capability in
// the business unit it targets. Handlers map it to 403.
var ErrScopeDenied = errors.New("access: scope denied")

// Role names as stored on role assignments.
type Role string

const (
	RoleSuperAdmin        Role = "super_admin"
	RoleBusinessUnitAdmin Role = "business_unit_admin"
	RoleEditor            Role = "editor"
	RoleViewer            Role = "viewer"
)

// Capability names the discrete things a caller can be allowed to do.
type Capability string

const (
	CapProjectRead   Capability = "project_read"
	CapProjectWrite  Capability = "project_write"
	CapMatrixEdit    Capability = "matrix_edit"
	CapFinanceEdit   Capability = "finance_edit"
	CapReportsView   Capability = "reports_view"
	CapReportsExport Capability = "reports_export"
	CapDashboardView Capability = "dashboard_view"
	CapAdminView     Capability = "admin_view"
	CapAdminAssign   Capability = "admin_assign"
)

// roleCapabilities is the authorization matrix. Changing a role's reach
// happens here and nowhere else.
var roleCapabilities = map[Role]map[Capability]bool{
	RoleSuperAdmin: {
		CapProjectRead: true, CapProjectWrite: true, CapMatrixEdit: true,
		CapFinanceEdit: true, CapReportsView: true, CapReportsExport: true,
		CapDashboardView: true, CapAdminView: true, CapAdminAssign: true,
	},
	RoleBusinessUnitAdmin: {
		CapProjectRead: true, CapProjectWrite: true, CapMatrixEdit: true,
		CapFinanceEdit: true, CapReportsView: true, CapReportsExport: true,
		CapDashboardView: true, CapAdminView: true, CapAdminAssign: true,
	},
	RoleEditor: {
		CapProjectRead: true, CapProjectWrite: true, CapMatrixEdit: true,
		CapFinanceEdit: true, CapReportsView: true, CapReportsExport: true,
		CapDashboardView: true,
	},
	RoleViewer: {
		CapProjectRead: true, CapReportsView: true, CapReportsExport: true,
		CapDashboardView: true,
	},
}

// RoleHasCapability consults the static matrix.
func RoleHasCapability(r Role, c Capability) bool {
	return roleCapabilities[r][c]
}

// ValidRole reports whether the name is one of the known roles.
func ValidRole(r Role) bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Assignment is one active role grant. A nil BusinessUnitID means the
// grant is global, which only super_admin uses.
type Assignment struct {
	Role           Role
	BusinessUnitID *string
}

// Scope is the resolved authorization state of one user: every active
// assignment, evaluated fresh per request.
type Scope struct {
	UserID      string
	Assignments []Assignment
}

// Allows reports whether the scope grants a capability inside the given
// business unit. Global assignments match every unit.
func (s Scope) Allows(c Capability, businessUnitID string) bool {
	for _, a := range s.Assignments {
		if !RoleHasCapability(a.Role, c) {
			continue
		}
		if a.BusinessUnitID == nil || *a.BusinessUnitID == businessUnitID {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether any assignment carries the global role.
func (s Scope) IsSuperAdmin() bool {
	for _, a := range s.Assignments {
		if a.Role == RoleSuperAdmin {
			return true
		}
	}
	return false
}

// BusinessUnitIDs lists every unit the scope can see at all. The second
// return is true when the scope is global and the list is meaningless.
func (s Scope) BusinessUnitIDs() ([]string, bool) {
	if s.IsSuperAdmin() {
		return nil, true
	}
	seen := make(map[string]bool)
	var ids []string
	for _, a := range s.Assignments {
		if a.BusinessUnitID != nil && !seen[*a.BusinessUnitID] {
			seen[*a.BusinessUnitID] = true
			ids = append(ids, *a.BusinessUnitID)
		}
	}
	return ids, false
}
