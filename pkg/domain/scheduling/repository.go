package scheduling

import (
	"context"
	"errors"
)

// ErrTaskNotFound indicates the task definition does not exist.
var ErrTaskNotFound = errors.New("task not found")

// TaskRepository handles persistence of task definitions.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *TaskDefinition) error
	GetTask(ctx context.Context, id string) (*TaskDefinition, error)
	// ListTasks returns the family's shared tasks and every member's
	// personal tasks.
	ListTasks(ctx context.Context, familyID string) ([]*TaskDefinition, error)
	UpdateTask(ctx context.Context, task *TaskDefinition) error
}

// OccurrenceRepository handles scheduled occurrences.
type OccurrenceRepository interface {
	OccurrenceReader
	CreateOccurrences(ctx context.Context, occurrences []ScheduledOccurrence) error
	GetOccurrence(ctx context.Context, id string) (*ScheduledOccurrence, error)
	UpdateOccurrence(ctx context.Context, occurrence *ScheduledOccurrence) error
	ListFamilyOccurrences(ctx context.Context, familyID string, from, to Date) ([]ScheduledOccurrence, error)
}
