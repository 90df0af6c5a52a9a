// Package family holds households and their members' roles.
package family

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role defines the access level of a family member.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// ValidRoles returns all valid role values.
func ValidRoles() []Role {
	return []Role{RoleAdmin, RoleMember, RoleViewer}
}

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role: %s", s)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CanEditPlan returns true if the role allows plan item edits and deletions.
func (r Role) CanEditPlan() bool {
	return r == RoleAdmin || r == RoleMember
}

// CanApprove returns true if the role takes part in plan approval.
func (r Role) CanApprove() bool {
	return r == RoleAdmin || r == RoleMember
}

// CanManageFamily returns true if the role allows membership changes.
func (r Role) CanManageFamily() bool {
	return r == RoleAdmin
}

// Family is a household sharing one weekly plan.
type Family struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Timezone     string    `json:"timezone" yaml:"timezone"`
	AutoGenerate bool      `json:"auto_generate" yaml:"auto_generate"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// Location resolves the family timezone, falling back to fallback when
// unset or unknown.
func (f *Family) Location(fallback *time.Location) *time.Location {
	if f.Timezone != "" {
		if loc, err := time.LoadLocation(f.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.Local
	}
	return fallback
}

// Member represents a family member with a role.
type Member struct {
	FamilyID    string    `json:"family_id" yaml:"family_id"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Role        Role      `json:"role" yaml:"role"`
	JoinedAt    time.Time `json:"joined_at" yaml:"joined_at"`
}

// Name returns the display name, or the user id when none is set.
func (m Member) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.UserID
}

// Members is a family's roster.
type Members []Member

// Find returns the member with the given user id, or nil if not found.
func (ms Members) Find(userID string) *Member {
	for i := range ms {
		if ms[i].UserID == userID {
			return &ms[i]
		}
	}
	return nil
}

// Has reports whether userID belongs to the roster.
func (ms Members) Has(userID string) bool {
	return ms.Find(userID) != nil
}

// IDs returns all user ids in roster order.
func (ms Members) IDs() []string {
	ids := make([]string, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.UserID)
	}
	return ids
}

// Approvers returns the ids of members whose role takes part in approval.
func (ms Members) Approvers() []string {
	var ids []string
	for _, m := range ms {
		if m.Role.CanApprove() {
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// Repository handles persistence of families and memberships.
type Repository interface {
	CreateFamily(ctx context.Context, f *Family) error
	GetFamily(ctx context.Context, id string) (*Family, error)
	ListFamilies(ctx context.Context) ([]*Family, error)
	UpdateFamily(ctx context.Context, f *Family) error
	// AddMember adds a member or updates the role of an existing one.
	AddMember(ctx context.Context, m Member) error
	ListMembers(ctx context.Context, familyID string) (Members, error)
}

// ErrFamilyNotFound indicates the family does not exist.
var ErrFamilyNotFound = errors.New("family not found")
