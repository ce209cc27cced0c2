package permission

import (
	"slices"
	"strings"
)

// Matches reports whether a permission string grants the (action, scope,
// entity) triple. Each of the string's three segments must equal the
// corresponding argument or be the wildcard. Malformed strings never match.
func Matches(perm, action, scope, entity string) bool {
	parts := strings.Split(perm, "_")
	if len(parts) != 3 {
		return false
	}
	return segmentMatches(parts[0], action) &&
		segmentMatches(parts[1], scope) &&
		segmentMatches(parts[2], entity)
}

func segmentMatches(segment, value string) bool {
	return segment == Wildcard || strings.EqualFold(segment, value)
}

// RolePermissions resolves a role name against the built-in table and a
// group's custom roles. Built-in names win; customRoles may be nil.
func RolePermissions(role string, customRoles map[string][]string) ([]string, bool) {
	if perms, ok := BuiltinRoles[role]; ok {
		return perms, true
	}
	if perms, ok := customRoles[role]; ok {
		return perms, true
	}
	return nil, false
}

// EffectivePermissions returns the union of the permission sets of all given
// roles, in first-seen order. Unknown role names contribute nothing.
func EffectivePermissions(roles []string, customRoles map[string][]string) []string {
	var union []string
	for _, role := range roles {
		perms, ok := RolePermissions(role, customRoles)
		if !ok {
			continue
		}
		for _, p := range perms {
			if !slices.Contains(union, p) {
				union = append(union, p)
			}
		}
	}
	return union
}

// AnyMatches reports whether any permission in the set grants the triple.
func AnyMatches(perms []string, action, scope, entity string) bool {
	for _, p := range perms {
		if Matches(p, action, scope, entity) {
			return true
		}
	}
	return false
}
