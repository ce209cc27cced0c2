package group

import (
	"strings"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/permission"
)

// Custom role payloads arrive from the route layer as loosely-shaped JSON:
// an object whose values are arrays of permission strings or one
// space-delimited string. ParseCustomRoles normalizes that shape.
func ParseCustomRoles(input map[string]any) (map[string][]string, error) {
	if len(input) == 0 {
		return nil, apperror.BadRequest("roles payload must be a non-empty object")
	}

	parsed := make(map[string][]string, len(input))
	for name, value := range input {
		name = strings.ToUpper(strings.TrimSpace(name))
		if name == "" {
			return nil, apperror.BadRequest("role names cannot be empty")
		}
		if permission.IsBuiltinRole(name) {
			return nil, apperror.Conflict("role %s is reserved", name)
		}

		var perms []string
		switch v := value.(type) {
		case string:
			perms = strings.Fields(v)
		case []string:
			perms = v
		case []any:
			for _, entry := range v {
				s, ok := entry.(string)
				if !ok {
					return nil, apperror.BadRequest("permissions of role %s must be strings", name)
				}
				perms = append(perms, s)
			}
		default:
			return nil, apperror.BadRequest("permissions of role %s must be an array of strings or a space-delimited string", name)
		}

		if len(perms) == 0 {
			return nil, apperror.BadRequest("role %s must carry at least one permission", name)
		}
		parsed[name] = perms
	}
	return parsed, nil
}

// UpdateCustomRoles replaces the group's custom role table.
func (g *Group) UpdateCustomRoles(input map[string]any) error {
	parsed, err := ParseCustomRoles(input)
	if err != nil {
		return err
	}
	g.CustomRoles = parsed
	return nil
}

// AddCustomRoles merges new definitions into the table, overwriting roles of
// the same name.
func (g *Group) AddCustomRoles(input map[string]any) error {
	parsed, err := ParseCustomRoles(input)
	if err != nil {
		return err
	}
	if g.CustomRoles == nil {
		g.CustomRoles = map[string][]string{}
	}
	for name, perms := range parsed {
		g.CustomRoles[name] = perms
	}
	return nil
}

// RemoveCustomRoles deletes roles by name. Members still holding a removed
// role lose it on the next Validate.
func (g *Group) RemoveCustomRoles(names []string) error {
	if len(names) == 0 {
		return apperror.BadRequest("at least one role name is required")
	}
	for _, name := range names {
		name = strings.ToUpper(strings.TrimSpace(name))
		if permission.IsBuiltinRole(name) {
			return apperror.Conflict("role %s is reserved", name)
		}
		if _, ok := g.CustomRoles[name]; !ok {
			return apperror.NotFound("no custom role %s", name)
		}
		delete(g.CustomRoles, name)
	}
	return nil
}
