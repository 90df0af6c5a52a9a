package application

import (
	"context"
	"fmt"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
)

// FamilyService manages families and their members.
type FamilyService struct {
	store Store
	cfg   serviceConfig
}

func NewFamilyService(store Store, opts ...Option) *FamilyService {
	return &FamilyService{store: store, cfg: newServiceConfig(opts)}
}

// CreateFamily registers a family with its creator as admin.
func (s *FamilyService) CreateFamily(ctx context.Context, name, timezone, creatorID, creatorName string) (*family.Family, error) {
	if name == "" {
		return nil, fmt.Errorf("family name is required")
	}
	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
		}
	}
	now := s.cfg.now()
	f := &family.Family{ID: s.cfg.newID(), Name: name, Timezone: timezone, CreatedAt: now}
	err := s.store.InTx(ctx, func(tx Repositories) error {
		if err := tx.CreateFamily(ctx, f); err != nil {
			return err
		}
		if creatorID == "" {
			return nil
		}
		return tx.AddMember(ctx, family.Member{FamilyID: f.ID, UserID: creatorID, DisplayName: creatorName, Role: family.RoleAdmin, JoinedAt: now})
	})
	if err != nil {
		return nil, err
	}
	s.cfg.logger.Info("family created", "family", f.ID, "name", name)
	return f, nil
}

// AddMember adds or re-roles a member. The actor must be able to manage the
// family unless the family has no members yet.
func (s *FamilyService) AddMember(ctx context.Context, familyID, actorID string, m family.Member) error {
	if m.UserID == "" {
		return fmt.Errorf("member user id is required")
	}
	if !m.Role.IsValid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	if _, err := s.store.GetFamily(ctx, familyID); err != nil {
		return err
	}
	members, err := s.store.ListMembers(ctx, familyID)
	if err != nil {
		return err
	}
	if len(members) > 0 {
		actor := members.Find(actorID)
		if actor == nil || !actor.Role.CanManageFamily() {
			return fmt.Errorf("%s cannot manage family %s", actorID, familyID)
		}
	}
	m.FamilyID = familyID
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.cfg.now()
	}
	opened := 0
	err = s.store.InTx(ctx, func(tx Repositories) error {
		opened = 0
		if err := tx.AddMember(ctx, m); err != nil {
			return err
		}
		if !m.Role.CanApprove() {
			return nil
		}
		n, err := openApprovals(ctx, tx, familyID, m.UserID, m.JoinedAt)
		opened = n
		return err
	})
	if err != nil {
		return err
	}
	s.cfg.logger.Info("member added", "family", familyID, "user", m.UserID, "role", string(m.Role), "open_plans", opened)
	return nil
}

// openApprovals gives userID a pending approval on every draft or pending
// plan of the family that lacks one. It returns how many plans gained a row.
func openApprovals(ctx context.Context, tx Repositories, familyID, userID string, now time.Time) (int, error) {
	plans, err := tx.ListPlans(ctx, familyID)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, p := range plans {
		if !p.Status.IsEditable() {
			continue
		}
		approvals, err := tx.ListApprovals(ctx, p.ID)
		if err != nil {
			return added, err
		}
		if hasApprover(approvals, userID) {
			continue
		}
		if err := tx.SaveApprovals(ctx, planning.NewApprovals(p.ID, []string{userID}, now)); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func hasApprover(approvals []*planning.WeeklyPlanApproval, userID string) bool {
	for _, a := range approvals {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

func (s *FamilyService) GetFamily(ctx context.Context, familyID string) (*family.Family, family.Members, error) {
	f, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return nil, nil, err
	}
	members, err := s.store.ListMembers(ctx, familyID)
	if err != nil {
		return nil, nil, err
	}
	return f, members, nil
}

func (s *FamilyService) ListFamilies(ctx context.Context) ([]*family.Family, error) {
	return s.store.ListFamilies(ctx)
}

// SetAutoGenerate toggles weekly generation by the scheduler.
func (s *FamilyService) SetAutoGenerate(ctx context.Context, familyID string, enabled bool) error {
	f, err := s.store.GetFamily(ctx, familyID)
	if err != nil {
		return err
	}
	f.AutoGenerate = enabled
	return s.store.UpdateFamily(ctx, f)
}
