package rbac

import (
	"strings"

	"github.com/agristock/agristock/internal/shared"
)

// Roles stored in users.role.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// Roles lists every assignable role, most privileged first.
var Roles = []string{RoleAdmin, RoleManager, RoleStaff}

// ValidRole reports whether role is one of Roles.
func ValidRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DefaultRole is assigned to self-registered accounts.
const DefaultRole = RoleStaff

// BatchDeleteRoles may remove batches.
var BatchDeleteRoles = []string{RoleAdmin, RoleManager}

// CanDeleteBatches reports whether v may remove batches.
func CanDeleteBatches(v shared.Viewer) bool {
	return v.Authenticated() && v.HasRole(BatchDeleteRoles...)
}

func normalizeRoles(roles []string) []string {
	unique := make(map[string]struct{}, len(roles))
	normalized := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, seen := unique[role]; seen {
			continue
		}
		unique[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
