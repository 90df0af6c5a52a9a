package application

import (
	"context"
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/analytics"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// MoveRequest reschedules one occurrence. A nil End keeps the duration.
type MoveRequest struct {
	OccurrenceID string
	Date         scheduling.Date
	Start        scheduling.TimeOfDay
	End          *scheduling.TimeOfDay
	ActorID      string
}

// OccurrenceService updates scheduled occurrences after approval.
type OccurrenceService struct {
	store Store
	cfg   serviceConfig
}

func NewOccurrenceService(store Store, opts ...Option) *OccurrenceService {
	return &OccurrenceService{store: store, cfg: newServiceConfig(opts)}
}

// ListWeek returns a family's occurrences for the week containing weekStart.
func (s *OccurrenceService) ListWeek(ctx context.Context, familyID string, weekStart scheduling.Date) ([]scheduling.ScheduledOccurrence, error) {
	monday := weekStart.Monday()
	return s.store.ListFamilyOccurrences(ctx, familyID, monday, monday.AddDays(6))
}

func (s *OccurrenceService) Complete(ctx context.Context, occurrenceID, actorID string) (*scheduling.ScheduledOccurrence, error) {
	return s.setStatus(ctx, occurrenceID, actorID, scheduling.OccurrenceCompleted)
}

// Skip marks an occurrence skipped so it no longer counts toward frequency.
func (s *OccurrenceService) Skip(ctx context.Context, occurrenceID, actorID string) (*scheduling.ScheduledOccurrence, error) {
	return s.setStatus(ctx, occurrenceID, actorID, scheduling.OccurrenceSkipped)
}

func (s *OccurrenceService) setStatus(ctx context.Context, occurrenceID, actorID string, status scheduling.OccurrenceStatus) (*scheduling.ScheduledOccurrence, error) {
	occ, err := s.store.GetOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, occ, actorID); err != nil {
		return nil, err
	}
	if !occ.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("occurrence %s is %s and cannot become %s", occ.ID, occ.Status, status)
	}
	from := occ.Status
	occ.Status = status
	occ.UpdatedAt = s.cfg.now()
	if err := s.store.UpdateOccurrence(ctx, occ); err != nil {
		return nil, err
	}
	s.cfg.publisher.Publish(ctx, events.NewOccurrenceEvent(occ.ID, occ.FamilyID, actorID, occ.UpdatedAt, map[string]any{
		"task_id": occ.TaskID,
		"from":    string(from),
		"to":      string(status),
	}))
	return occ, nil
}

// Move reschedules an occurrence within its week and logs the reschedule as
// a conflict. The task's day and time constraints still apply. The conflict is
// overlapping when it lands on another occurrence of the same assignee,
// shortened when it loses time and displaced otherwise.
func (s *OccurrenceService) Move(ctx context.Context, req MoveRequest) (*scheduling.ScheduledOccurrence, []analytics.ScheduleConflict, error) {
	if !req.Start.IsValid() {
		return nil, nil, fmt.Errorf("invalid start time")
	}
	now := s.cfg.now()
	var (
		occ      *scheduling.ScheduledOccurrence
		recorded []analytics.ScheduleConflict
	)
	err := s.store.InTx(ctx, func(tx Repositories) error {
		var err error
		occ, err = tx.GetOccurrence(ctx, req.OccurrenceID)
		if err != nil {
			return err
		}
		if err := authorizeOccurrence(ctx, tx, occ, req.ActorID); err != nil {
			return err
		}
		if occ.Status != scheduling.OccurrencePending {
			return fmt.Errorf("occurrence %s is %s and cannot be moved", occ.ID, occ.Status)
		}

		task, err := tx.GetTask(ctx, occ.TaskID)
		if err != nil {
			return err
		}
		week := occ.Date.Monday()
		placement := scheduling.Placement{Date: req.Date, Start: req.Start, AssignedUserID: occ.AssignedUserID}
		if err := task.CheckWithin(placement, week, week.AddDays(6)).Err(task.ID); err != nil {
			return err
		}

		duration := occ.DurationMin()
		end := req.Start.Add(duration)
		if req.End != nil {
			if *req.End <= req.Start {
				return fmt.Errorf("end %s must be after start %s", *req.End, req.Start)
			}
			end = *req.End
		}
		shortened := int(end-req.Start) < duration

		occ.Date, occ.Start, occ.End = req.Date, req.Start, end
		occ.ManuallyMoved = true
		occ.UpdatedAt = now
		if err := tx.UpdateOccurrence(ctx, occ); err != nil {
			return err
		}

		sameDay, err := tx.ListFamilyOccurrences(ctx, occ.FamilyID, occ.Date, occ.Date)
		if err != nil {
			return err
		}
		base := analytics.ScheduleConflict{
			FamilyID:    occ.FamilyID,
			MovedTaskID: occ.TaskID,
			WeekStart:   week,
			RecordedBy:  req.ActorID,
			RecordedAt:  now,
		}
		for _, other := range sameDay {
			if other.ID == occ.ID || other.AssignedUserID != occ.AssignedUserID || other.Status == scheduling.OccurrenceSkipped {
				continue
			}
			if scheduling.Overlaps(occ.Start, occ.End, other.Start, other.End) {
				c := base
				c.ID = s.cfg.newID()
				c.DisplacedTaskID = other.TaskID
				c.ResolutionType = analytics.ResolutionOverlapping
				recorded = append(recorded, c)
			}
		}
		if len(recorded) == 0 {
			c := base
			c.ID = s.cfg.newID()
			c.ResolutionType = analytics.ResolutionDisplaced
			if shortened {
				c.ResolutionType = analytics.ResolutionShortened
			}
			recorded = append(recorded, c)
		}
		for _, c := range recorded {
			if err := tx.AppendConflict(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.cfg.logger.Info("occurrence moved", "occurrence", occ.ID, "date", occ.Date.String(), "start", occ.Start.String(), "actor", req.ActorID)
	s.cfg.publisher.Publish(ctx, events.NewOccurrenceEvent(occ.ID, occ.FamilyID, req.ActorID, now, map[string]any{
		"task_id": occ.TaskID,
		"date":    occ.Date.String(),
		"start":   occ.Start.String(),
		"moved":   true,
	}))
	return occ, recorded, nil
}

func (s *OccurrenceService) authorize(ctx context.Context, occ *scheduling.ScheduledOccurrence, actorID string) error {
	return authorizeOccurrence(ctx, s.store, occ, actorID)
}

// authorizeOccurrence lets the assignee or any editing member change an occurrence.
func authorizeOccurrence(ctx context.Context, repos Repositories, occ *scheduling.ScheduledOccurrence, actorID string) error {
	if actorID == occ.AssignedUserID {
		return nil
	}
	if occ.FamilyID == "" {
		return fmt.Errorf("%w: only %s may update occurrence %s", planning.ErrNotFamilyMember, occ.AssignedUserID, occ.ID)
	}
	members, err := repos.ListMembers(ctx, occ.FamilyID)
	if err != nil {
		return err
	}
	m := members.Find(actorID)
	if m == nil {
		return fmt.Errorf("%w: %s in family %s", planning.ErrNotFamilyMember, actorID, occ.FamilyID)
	}
	if !m.Role.CanEditPlan() {
		return fmt.Errorf("%s members cannot update occurrences", m.Role)
	}
	return nil
}
