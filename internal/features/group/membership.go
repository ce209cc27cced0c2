package group

import (
	"slices"
	"strings"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/features/permission"
)

// All mutators below change the aggregate in memory only. Persistence is an
// explicit GroupService.Save, so a handler can batch several role changes
// into one write.

// GetMembers returns the member ids in no particular order.
func (g *Group) GetMembers() []string {
	ids := make([]string, 0, len(g.Members))
	for id := range g.Members {
		ids = append(ids, id)
	}
	return ids
}

// HasMember reports whether id belongs to the group.
func (g *Group) HasMember(id string) bool {
	_, ok := g.Members[id]
	return ok
}

// GetMemberRoles returns the member's roles mapped to their permission lists.
func (g *Group) GetMemberRoles(id string) (map[string][]string, error) {
	member, ok := g.Members[id]
	if !ok {
		return nil, apperror.NotFound("member %s is not in this group", id)
	}
	roles := make(map[string][]string, len(member.Roles))
	for _, role := range member.Roles {
		perms, ok := permission.RolePermissions(role, g.CustomRoles)
		if !ok {
			continue
		}
		roles[role] = perms
	}
	return roles, nil
}

// EffectivePermissions returns the union of the member's permission sets.
func (g *Group) EffectivePermissions(id string) ([]string, error) {
	member, ok := g.Members[id]
	if !ok {
		return nil, apperror.NotFound("member %s is not in this group", id)
	}
	return permission.EffectivePermissions(member.Roles, g.CustomRoles), nil
}

// AddMember adds a new member with the given roles. Granting OWNER requires
// the explicit allowOwner flag so a leader cannot escalate an invitee.
func (g *Group) AddMember(id string, roles []string, allowOwner bool) error {
	if g.HasMember(id) {
		return apperror.Conflict("member %s is already in this group", id)
	}
	normalized, err := g.normalizeRoles(roles, allowOwner)
	if err != nil {
		return err
	}
	if g.Members == nil {
		g.Members = map[string]Member{}
	}
	g.Members[id] = Member{Roles: normalized}
	return nil
}

// SetMemberRoles replaces the member's role set.
func (g *Group) SetMemberRoles(id string, roles []string, allowOwner bool) error {
	member, ok := g.Members[id]
	if !ok {
		return apperror.NotFound("member %s is not in this group", id)
	}
	normalized, err := g.normalizeRoles(roles, allowOwner)
	if err != nil {
		return err
	}
	if slices.Contains(member.Roles, permission.RoleOwner) &&
		!slices.Contains(normalized, permission.RoleOwner) && g.ownerCount() == 1 {
		return apperror.Forbidden("cannot remove the only OWNER; transfer ownership first")
	}
	g.Members[id] = Member{Roles: normalized}
	return nil
}

// AddMemberRoles unions roles into the member's set.
func (g *Group) AddMemberRoles(id string, roles []string, allowOwner bool) error {
	member, ok := g.Members[id]
	if !ok {
		return apperror.NotFound("member %s is not in this group", id)
	}
	normalized, err := g.normalizeRoles(roles, allowOwner)
	if err != nil {
		return err
	}
	for _, role := range normalized {
		if !slices.Contains(member.Roles, role) {
			member.Roles = append(member.Roles, role)
		}
	}
	g.Members[id] = member
	return nil
}

// RemoveMemberRoles subtracts roles from the member's set. It refuses to
// leave the member with no roles and to strip OWNER from the sole owner.
func (g *Group) RemoveMemberRoles(id string, roles []string) error {
	member, ok := g.Members[id]
	if !ok {
		return apperror.NotFound("member %s is not in this group", id)
	}

	remove := make([]string, 0, len(roles))
	for _, role := range roles {
		remove = append(remove, strings.ToUpper(strings.TrimSpace(role)))
	}

	if slices.Contains(remove, permission.RoleOwner) &&
		slices.Contains(member.Roles, permission.RoleOwner) && g.ownerCount() == 1 {
		return apperror.Forbidden("cannot remove the only OWNER; transfer ownership first")
	}

	var remaining []string
	for _, role := range member.Roles {
		if !slices.Contains(remove, role) {
			remaining = append(remaining, role)
		}
	}
	if len(remaining) == 0 {
		return apperror.BadRequest("member %s would be left without roles; remove the member instead", id)
	}
	g.Members[id] = Member{Roles: remaining}
	return nil
}

// RemoveMember drops the member. Removing the sole OWNER is forbidden; the
// caller must transfer ownership first.
func (g *Group) RemoveMember(id string) error {
	member, ok := g.Members[id]
	if !ok {
		return apperror.NotFound("member %s is not in this group", id)
	}
	if slices.Contains(member.Roles, permission.RoleOwner) && g.ownerCount() == 1 {
		return apperror.Forbidden("cannot remove the only OWNER; transfer ownership first")
	}
	delete(g.Members, id)
	return nil
}

// TransferMembership unions the source member's roles into the target
// (creating the target if absent) and deletes the source. Used when a
// temporary invited identity is replaced by an authenticated one.
func (g *Group) TransferMembership(sourceID, targetID string) error {
	source, ok := g.Members[sourceID]
	if !ok {
		return apperror.NotFound("member %s is not in this group", sourceID)
	}
	if sourceID == targetID {
		return apperror.BadRequest("cannot transfer membership to the same id")
	}

	target := g.Members[targetID]
	for _, role := range source.Roles {
		if !slices.Contains(target.Roles, role) {
			target.Roles = append(target.Roles, role)
		}
	}
	g.Members[targetID] = target
	delete(g.Members, sourceID)

	if g.Creator == sourceID {
		g.Creator = targetID
	}
	return nil
}

// Validate repairs the aggregate before every persist: members with no
// resolvable roles are stripped, and the creator is granted OWNER and LEADER
// when no member holds them.
func (g *Group) Validate() {
	if g.Members == nil {
		g.Members = map[string]Member{}
	}
	if g.CustomRoles == nil {
		g.CustomRoles = map[string][]string{}
	}

	for id, member := range g.Members {
		var valid []string
		for _, role := range member.Roles {
			role = strings.ToUpper(strings.TrimSpace(role))
			if role == "" {
				continue
			}
			if _, ok := permission.RolePermissions(role, g.CustomRoles); !ok {
				continue
			}
			if !slices.Contains(valid, role) {
				valid = append(valid, role)
			}
		}
		if len(valid) == 0 {
			delete(g.Members, id)
			continue
		}
		g.Members[id] = Member{Roles: valid}
	}

	if g.Creator == "" {
		return
	}
	creator := g.Members[g.Creator]
	if g.ownerCount() == 0 && !slices.Contains(creator.Roles, permission.RoleOwner) {
		creator.Roles = append(creator.Roles, permission.RoleOwner)
	}
	if g.roleCount(permission.RoleLeader) == 0 && !slices.Contains(creator.Roles, permission.RoleLeader) {
		creator.Roles = append(creator.Roles, permission.RoleLeader)
	}
	if len(creator.Roles) > 0 {
		g.Members[g.Creator] = creator
	}
}

func (g *Group) ownerCount() int {
	return g.roleCount(permission.RoleOwner)
}

func (g *Group) roleCount(role string) int {
	n := 0
	for _, member := range g.Members {
		if slices.Contains(member.Roles, role) {
			n++
		}
	}
	return n
}

// normalizeRoles uppercases, dedupes and checks that every role resolves to a
// known built-in or custom role. OWNER passes only with allowOwner.
func (g *Group) normalizeRoles(roles []string, allowOwner bool) ([]string, error) {
	if len(roles) == 0 {
		return nil, apperror.BadRequest("at least one role is required")
	}
	var normalized []string
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if role == permission.RoleOwner && !allowOwner {
			return nil, apperror.Forbidden("the OWNER role cannot be granted here")
		}
		if _, ok := permission.RolePermissions(role, g.CustomRoles); !ok {
			return nil, apperror.BadRequest("unknown role %s", role)
		}
		if !slices.Contains(normalized, role) {
			normalized = append(normalized, role)
		}
	}
	if len(normalized) == 0 {
		return nil, apperror.BadRequest("at least one role is required")
	}
	return normalized, nil
}
