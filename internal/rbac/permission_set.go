package rbac

import (
	"sort"

	"github.com/odyssey-erp/odyssey-access/internal/shared"
)

// PermissionSet is a deduplicated set of canonical permission names.
type PermissionSet map[string]struct{}

// NewPermissionSet canonicalises names into a set.
func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	set.Add(names...)
	return set
}

// Add inserts canonicalised names, skipping blanks.
func (s PermissionSet) Add(names ...string) {
	for _, name := range names {
		name = shared.CanonicalPermission(name)
		if name == "" {
			continue
		}
		s[name] = struct{}{}
	}
}

// Union merges other into a copy of s.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for name := range s {
		out[name] = struct{}{}
	}
	for name := range other {
		out[name] = struct{}{}
	}
	return out
}

// Has reports exact membership of a canonical name.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[shared.CanonicalPermission(name)]
	return ok
}

// Names returns the members sorted.
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check answers whether set grants module.action. It is a plain membership
// test: no super-admin bypass and no implied actions.
func Check(set PermissionSet, module, action string) bool {
	if len(set) == 0 {
		return false
	}
	_, ok := set[shared.PermissionName(module, action)]
	return ok
}
