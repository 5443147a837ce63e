package shared

import (
	"strings"

	"golang.org/x/text/cases"
)

// PermissionSeparator joins module and action in canonical permission names.
const PermissionSeparator = "."

// Fold canonicalises identifiers for case-insensitive comparison.
func Fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// PermissionName builds the canonical "module.action" string.
func PermissionName(module, action string) string {
	return Fold(module) + PermissionSeparator + Fold(action)
}

// SplitPermission parses a permission name in either "module.action" or
// "module_action" form. The action is always the last segment, so
// "inventory.stock.read" yields module "inventory.stock".
func SplitPermission(name string) (module, action string, ok bool) {
	name = Fold(name)
	if name == "" {
		return "", "", false
	}
	idx := strings.LastIndex(name, PermissionSeparator)
	if idx < 0 {
		idx = strings.LastIndex(name, "_")
	}
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// CanonicalPermission rewrites a permission name into "module.action" form.
// Names that cannot be parsed are returned folded but otherwise untouched.
func CanonicalPermission(name string) string {
	module, action, ok := SplitPermission(name)
	if !ok {
		return Fold(name)
	}
	return module + PermissionSeparator + action
}
