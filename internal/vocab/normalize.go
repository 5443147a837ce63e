// Package vocab translates canonical server permissions into the verbs
// client applications understand and answers module level questions
// about a permission set.
package vocab

import (
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
	"github.com/odyssey-erp/odyssey-access/internal/tenant"
)

// Client side verbs.
const (
	ClientView   = "view"
	ClientCreate = "create"
	ClientEdit   = "edit"
	ClientDelete = "delete"
)

// aliases maps server actions to the client verb they imply. No alias is
// itself a key, so expanding an expanded set adds nothing.
var aliases = map[string]string{
	shared.ActionRead:   ClientView,
	shared.ActionList:   ClientView,
	shared.ActionAccess: ClientView,
	shared.ActionManage: ClientView,
	shared.ActionUpdate: ClientEdit,
}

// Alias returns the client verb for a server action, if any.
func Alias(action string) (string, bool) {
	alias, ok := aliases[shared.Fold(action)]
	return alias, ok
}

// Normalize canonicalises raw permission names and adds the client
// aliases. The result is sorted and free of duplicates.
func Normalize(raw []string) []string {
	set := make(map[string]struct{}, len(raw)*2)
	for _, name := range raw {
		module, action, ok := shared.SplitPermission(name)
		if !ok {
			if folded := shared.Fold(name); folded != "" {
				set[folded] = struct{}{}
			}
			continue
		}
		set[module+shared.PermissionSeparator+action] = struct{}{}
		if alias, ok := aliases[action]; ok {
			set[module+shared.PermissionSeparator+alias] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Option customises a View.
type Option func(*View)

// WithEnabledModules gates module and submodule access by the tenant's
// licensed modules. Without it no licensing gate applies.
func WithEnabledModules(modules []string) Option {
	return func(v *View) {
		v.enabled = make(map[string]struct{}, len(modules))
		for _, m := range tenant.CanonicalModules(modules) {
			v.enabled[m] = struct{}{}
		}
	}
}

// View is a normalized permission set ready for client facing questions.
type View struct {
	names   []string
	set     map[string]struct{}
	enabled map[string]struct{}
}

// NewView normalizes raw and applies opts.
func NewView(raw []string, opts ...Option) *View {
	names := Normalize(raw)
	v := &View{names: names, set: make(map[string]struct{}, len(names))}
	for _, name := range names {
		v.set[name] = struct{}{}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Permissions returns the normalized names.
func (v *View) Permissions() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// HasPermission reports exact membership of name in either vocabulary.
func (v *View) HasPermission(name string) bool {
	_, ok := v.set[shared.CanonicalPermission(name)]
	return ok
}

// HasModuleAccess reports whether any permission lives under module and
// the module is licensed.
func (v *View) HasModuleAccess(module string) bool {
	module = shared.Fold(module)
	if module == "" || !v.licensed(module) {
		return false
	}
	return v.hasPrefix(module + shared.PermissionSeparator)
}

// HasSubmoduleAccess is HasModuleAccess one level deeper: it looks for
// "module.submodule." or "module_submodule." permissions.
func (v *View) HasSubmoduleAccess(module, submodule string) bool {
	module = shared.Fold(module)
	submodule = shared.Fold(submodule)
	if module == "" || submodule == "" || !v.licensed(module) {
		return false
	}
	return v.hasPrefix(module+shared.PermissionSeparator+submodule+shared.PermissionSeparator) ||
		v.hasPrefix(module+"_"+submodule+shared.PermissionSeparator)
}

// Modules lists the modules the view grants access to.
func (v *View) Modules() []string {
	var out []string
	for _, module := range shared.Modules() {
		if v.HasModuleAccess(module) {
			out = append(out, module)
		}
	}
	return out
}

func (v *View) licensed(module string) bool {
	if v.enabled == nil {
		return true
	}
	_, ok := v.enabled[module]
	return ok
}

func (v *View) hasPrefix(prefix string) bool {
	idx := sort.SearchStrings(v.names, prefix)
	return idx < len(v.names) && strings.HasPrefix(v.names[idx], prefix)
}
