package application

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// TaskService manages task definitions. The engine never changes a
// definition on its own.
type TaskService struct {
	store Store
	cfg   serviceConfig
}

func NewTaskService(store Store, opts ...Option) *TaskService {
	return &TaskService{store: store, cfg: newServiceConfig(opts)}
}

// AddTask validates and stores a new definition. An empty ID is generated.
func (s *TaskService) AddTask(ctx context.Context, t *scheduling.TaskDefinition) error {
	if t.ID == "" {
		t.ID = s.cfg.newID()
	}
	if t.Priority == 0 {
		t.Priority = scheduling.PriorityLowest
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if t.FamilyID != "" {
		members, err := s.store.ListMembers(ctx, t.FamilyID)
		if err != nil {
			return err
		}
		if !members.Has(t.OwnerID) {
			return fmt.Errorf("task owner %s is not a member of family %s", t.OwnerID, t.FamilyID)
		}
	}
	now := s.cfg.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := s.store.CreateTask(ctx, t); err != nil {
		return err
	}
	s.cfg.logger.Info("task added", "task", t.ID, "type", string(t.Type), "mode", string(t.Mode))
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context, familyID string) ([]*scheduling.TaskDefinition, error) {
	return s.store.ListTasks(ctx, familyID)
}

type taskFile struct {
	Tasks []*scheduling.TaskDefinition `yaml:"tasks"`
}

// ImportTasks reads a YAML document with a top-level "tasks" list and
// creates or replaces each definition. familyID fills tasks without one
// unless they are personal resolutions.
func (s *TaskService) ImportTasks(ctx context.Context, data []byte, familyID string) (created, updated int, err error) {
	var doc taskFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return 0, 0, fmt.Errorf("parse tasks file: %w", err)
	}
	if len(doc.Tasks) == 0 {
		return 0, 0, fmt.Errorf("tasks file contains no tasks")
	}

	now := s.cfg.now()
	err = s.store.InTx(ctx, func(tx Repositories) error {
		created, updated = 0, 0
		for i, t := range doc.Tasks {
			if t.ID == "" {
				t.ID = s.cfg.newID()
			}
			if t.Priority == 0 {
				t.Priority = scheduling.PriorityLowest
			}
			if t.FamilyID == "" && t.Type == scheduling.TaskTypeHousehold {
				t.FamilyID = familyID
			}
			if err := t.Validate(); err != nil {
				return fmt.Errorf("task %d: %w", i+1, err)
			}
			existing, err := tx.GetTask(ctx, t.ID)
			switch {
			case errors.Is(err, scheduling.ErrTaskNotFound):
				t.CreatedAt, t.UpdatedAt = now, now
				if err := tx.CreateTask(ctx, t); err != nil {
					return err
				}
				created++
			case err != nil:
				return err
			default:
				t.CreatedAt, t.UpdatedAt = existing.CreatedAt, now
				if err := tx.UpdateTask(ctx, t); err != nil {
					return err
				}
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	s.cfg.logger.Info("tasks imported", "created", created, "updated", updated)
	return created, updated, nil
}
