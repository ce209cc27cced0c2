package group

import (
	"slices"
	"testing"

	"github.com/CenterForDigitalHumanities/TPEN-services-sub000/internal/apperror"
)

func TestNewGroupGrantsCreatorOwnerAndLeader(t *testing.T) {
	g := NewGroup("u1")

	member, ok := g.Members["u1"]
	if !ok {
		t.Fatal("creator missing from members")
	}
	if !slices.Contains(member.Roles, "OWNER") || !slices.Contains(member.Roles, "LEADER") {
		t.Errorf("creator roles = %v, want OWNER and LEADER", member.Roles)
	}
}

func TestAddMember(t *testing.T) {
	g := NewGroup("u1")

	if err := g.AddMember("u2", []string{"contributor"}, false); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	roles, err := g.GetMemberRoles("u2")
	if err != nil {
		t.Fatalf("GetMemberRoles: %v", err)
	}
	perms, ok := roles["CONTRIBUTOR"]
	if !ok {
		t.Fatalf("roles = %v, want CONTRIBUTOR entry", roles)
	}
	if !slices.Contains(perms, "UPDATE_TEXT_*") {
		t.Errorf("contributor permissions = %v, missing UPDATE_TEXT_*", perms)
	}

	// dup add is a conflict
	err = g.AddMember("u2", []string{"VIEWER"}, false)
	if !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("duplicate AddMember error = %v, want Conflict", err)
	}
}

func TestAddMemberOwnerNeedsOverride(t *testing.T) {
	g := NewGroup("u1")

	err := g.AddMember("u2", []string{"OWNER"}, false)
	if !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("OWNER grant without override = %v, want Forbidden", err)
	}
	if err := g.AddMember("u2", []string{"OWNER"}, true); err != nil {
		t.Errorf("OWNER grant with override failed: %v", err)
	}
}

func TestAddMemberUnknownRole(t *testing.T) {
	g := NewGroup("u1")
	err := g.AddMember("u2", []string{"WIZARD"}, false)
	if !apperror.IsKind(err, apperror.KindBadRequest) {
		t.Errorf("unknown role error = %v, want BadRequest", err)
	}
}

func TestRemoveSoleOwnerForbidden(t *testing.T) {
	g := NewGroup("u1")

	if err := g.RemoveMember("u1"); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("RemoveMember(sole owner) = %v, want Forbidden", err)
	}
	if err := g.RemoveMemberRoles("u1", []string{"OWNER"}); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Errorf("RemoveMemberRoles(sole owner, OWNER) = %v, want Forbidden", err)
	}
}

func TestOwnershipHandoff(t *testing.T) {
	g := NewGroup("u1")
	if err := g.AddMember("u2", []string{"CONTRIBUTOR"}, false); err != nil {
		t.Fatal(err)
	}

	// u1 is still the sole owner
	if err := g.RemoveMemberRoles("u1", []string{"OWNER"}); !apperror.IsKind(err, apperror.KindForbidden) {
		t.Fatalf("premature owner removal = %v, want Forbidden", err)
	}

	if err := g.AddMemberRoles("u2", []string{"OWNER"}, true); err != nil {
		t.Fatalf("AddMemberRoles: %v", err)
	}
	if err := g.RemoveMemberRoles("u1", []string{"OWNER"}); err != nil {
		t.Fatalf("owner removal after handoff failed: %v", err)
	}
	if slices.Contains(g.Members["u1"].Roles, "OWNER") {
		t.Error("u1 still holds OWNER after removal")
	}
}

func TestRemoveMemberRolesCannotLeaveZero(t *testing.T) {
	g := NewGroup("u1")
	if err := g.AddMember("u2", []string{"VIEWER"}, false); err != nil {
		t.Fatal(err)
	}
	err := g.RemoveMemberRoles("u2", []string{"VIEWER"})
	if !apperror.IsKind(err, apperror.KindBadRequest) {
		t.Errorf("removal leaving zero roles = %v, want BadRequest", err)
	}
}

func TestTransferMembership(t *testing.T) {
	g := NewGroup("u1")
	if err := g.AddMember("invite-123", []string{"CONTRIBUTOR"}, false); err != nil {
		t.Fatal(err)
	}
	if err := g.AddMember("u2", []string{"VIEWER"}, false); err != nil {
		t.Fatal(err)
	}

	if err := g.TransferMembership("invite-123", "u2"); err != nil {
		t.Fatalf("TransferMembership: %v", err)
	}
	if g.HasMember("invite-123") {
		t.Error("source identity still in group after transfer")
	}
	roles := g.Members["u2"].Roles
	if !slices.Contains(roles, "CONTRIBUTOR") || !slices.Contains(roles, "VIEWER") {
		t.Errorf("target roles = %v, want union of VIEWER and CONTRIBUTOR", roles)
	}
}

func TestTransferMembershipCreatesTarget(t *testing.T) {
	g := NewGroup("u1")
	if err := g.AddMember("invite-123", []string{"CONTRIBUTOR"}, false); err != nil {
		t.Fatal(err)
	}
	if err := g.TransferMembership("invite-123", "u9"); err != nil {
		t.Fatalf("TransferMembership: %v", err)
	}
	if !slices.Contains(g.Members["u9"].Roles, "CONTRIBUTOR") {
		t.Errorf("new target roles = %v", g.Members["u9"].Roles)
	}
}

func TestValidateStripsBrokenMembers(t *testing.T) {
	g := NewGroup("u1")
	g.Members["broken"] = Member{Roles: []string{"", "NOPE"}}
	g.Validate()
	if g.HasMember("broken") {
		t.Error("member with no valid roles survived Validate")
	}
	if !g.HasMember("u1") {
		t.Error("creator stripped by Validate")
	}
}

func TestGetMemberRolesNotFound(t *testing.T) {
	g := NewGroup("u1")
	_, err := g.GetMemberRoles("ghost")
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Errorf("GetMemberRoles(ghost) = %v, want NotFound", err)
	}
}

func TestCustomRoles(t *testing.T) {
	g := NewGroup("u1")

	err := g.AddCustomRoles(map[string]any{
		"TRANSCRIBER": "UPDATE_TEXT_LINE READ_*_PROJECT",
	})
	if err != nil {
		t.Fatalf("AddCustomRoles: %v", err)
	}
	if err := g.AddMember("u2", []string{"transcriber"}, false); err != nil {
		t.Fatalf("AddMember with custom role: %v", err)
	}

	perms, err := g.EffectivePermissions("u2")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Contains(perms, "UPDATE_TEXT_LINE") {
		t.Errorf("effective permissions = %v", perms)
	}

	// reserved names and malformed shapes are rejected
	if err := g.AddCustomRoles(map[string]any{"OWNER": []any{"*_*_*"}}); !apperror.IsKind(err, apperror.KindConflict) {
		t.Errorf("reserved name = %v, want Conflict", err)
	}
	if err := g.AddCustomRoles(map[string]any{"X": 42}); !apperror.IsKind(err, apperror.KindBadRequest) {
		t.Errorf("malformed shape = %v, want BadRequest", err)
	}
	if err := g.AddCustomRoles(map[string]any{"X": []any{1, 2}}); !apperror.IsKind(err, apperror.KindBadRequest) {
		t.Errorf("non-string entries = %v, want BadRequest", err)
	}

	// removing the custom role invalidates the member on next Validate
	if err := g.RemoveCustomRoles([]string{"TRANSCRIBER"}); err != nil {
		t.Fatalf("RemoveCustomRoles: %v", err)
	}
	g.Validate()
	if g.HasMember("u2") {
		t.Error("member holding only a removed custom role survived Validate")
	}
}
