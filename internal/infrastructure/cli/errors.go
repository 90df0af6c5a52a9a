package cli

import (
	"errors"
	"fmt"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/config"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/proposal"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// exitConflict signals a lost concurrent edit so scripts can retry.
const exitConflict = 3

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var genErr *application.GenerationError
	if errors.As(err, &genErr) {
		hint := "Check the AI provider with 'resolution --debug plan generate' and the log file"
		if errors.Is(err, proposal.ErrNoValidProposals) {
			hint = "Every proposal broke a task constraint:\n" + genErr.RejectionSummary()
		}
		return NewCLIError(fmt.Sprintf("generation for the week of %s failed", genErr.WeekStart), hint, err)
	}

	var violation *planning.StateViolationError
	if errors.As(err, &violation) {
		return NewCLIError(
			violation.Error(),
			fmt.Sprintf("Run 'resolution plan show %s' to see where the plan is", violation.PlanID),
			err,
		)
	}

	var constraint *scheduling.ConstraintError
	if errors.As(err, &constraint) {
		return NewCLIError(constraint.Reason, "Choose a day and time the task allows; 'resolution task list' shows its constraints", err)
	}

	switch {
	case errors.Is(err, wiring.ErrNotInitialized):
		return NewCLIError("no workspace found", "Run 'resolution init' to create .resolution/", err)
	case errors.Is(err, family.ErrFamilyNotFound):
		return NewCLIError("family not found", "Run 'resolution family list' to see family ids", err)
	case errors.Is(err, planning.ErrPlanNotFound):
		return NewCLIError("plan not found", "Run 'resolution plan list --family <id>' to see plans", err)
	case errors.Is(err, planning.ErrItemNotFound):
		return NewCLIError("plan item not found", "Run 'resolution plan show <plan>' to see current item ids", err)
	case errors.Is(err, planning.ErrNotFamilyMember):
		return NewCLIError("user is not a member of the family", "Add them with 'resolution family add-member'", err)
	case errors.Is(err, planning.ErrApprovalNotFound):
		return NewCLIError("user has no vote on this plan", "Only admins and members approve plans", err)
	case errors.Is(err, planning.ErrVersionConflict):
		e := NewCLIError("the item changed since you read it", "Run 'resolution plan show' and retry with the current --version", err)
		e.ExitCode = exitConflict
		return e
	case errors.Is(err, scheduling.ErrWeekElapsed):
		return NewCLIError("that week has already ended", "Pick the current or a future week with --week", err)
	case errors.Is(err, scheduling.ErrTaskNotFound):
		return NewCLIError("task not found", "Run 'resolution task list --family <id>' to see tasks", err)
	case errors.Is(err, storage.ErrOccurrenceNotFound):
		return NewCLIError("occurrence not found", "Run 'resolution occurrence list --family <id>' to see this week", err)
	case errors.Is(err, events.ErrChainBroken):
		return NewCLIError("the event log failed verification", "Restore .resolution/events.jsonl from a backup; entries after the reported one are untrusted", err)
	case errors.Is(err, config.ErrKeyringUnavailable):
		return NewCLIError("the OS keyring is not available", "Set the secret through its RESOLUTION_SECRET_* environment variable instead", err)
	case errors.Is(err, config.ErrSecretNotFound):
		return NewCLIError("secret not found", "Store it with 'resolution secrets set <name>'", err)
	}

	return err
}
