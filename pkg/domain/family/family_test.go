package family

import (
	"testing"
	"time"
)

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role  Role
		valid bool
	}{
		{RoleAdmin, true},
		{RoleMember, true},
		{RoleViewer, true},
		{Role("superadmin"), false},
		{Role(""), false},
	}
	for _, tt := range tests {
		if got := tt.role.IsValid(); got != tt.valid {
			t.Errorf("Role(%q).IsValid() = %v, want %v", tt.role, got, tt.valid)
		}
	}
}

func TestRole_Permissions(t *testing.T) {
	if !RoleAdmin.CanManageFamily() {
		t.Error("admin should be able to manage the family")
	}
	if RoleMember.CanManageFamily() {
		t.Error("member should not manage the family")
	}
	if RoleViewer.CanEditPlan() || RoleViewer.CanApprove() {
		t.Error("viewer should neither edit nor approve")
	}
	if r, err := ParseRole(" Admin "); err != nil || r != RoleAdmin {
		t.Errorf("ParseRole = %q, %v", r, err)
	}
}

func TestMembers(t *testing.T) {
	ms := Members{
		{UserID: "alice", Role: RoleAdmin, DisplayName: "Alice"},
		{UserID: "bob", Role: RoleMember},
		{UserID: "gran", Role: RoleViewer},
	}
	if !ms.Has("bob") || ms.Has("mallory") {
		t.Error("Has returned the wrong answer")
	}
	if got := ms.Approvers(); len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("unexpected approvers %v", got)
	}
	if ms.Find("bob").Name() != "bob" || ms.Find("alice").Name() != "Alice" {
		t.Error("Name fallback broken")
	}
}

func TestFamily_Location(t *testing.T) {
	f := &Family{Timezone: "UTC"}
	if got := f.Location(time.Local).String(); got != "UTC" {
		t.Errorf("expected UTC, got %s", got)
	}
	f.Timezone = "Mars/Olympus"
	if got := f.Location(time.UTC); got != time.UTC {
		t.Errorf("expected fallback, got %s", got)
	}
}
