package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/proposal"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
)

// ErrUpstream marks a failure of the proposal generator itself.
var ErrUpstream = errors.New("proposal generator failed")

// GenerationError reports a week that could not be planned. It wraps either
// proposal.ErrNoValidProposals or ErrUpstream.
type GenerationError struct {
	FamilyID   string
	WeekStart  scheduling.Date
	Reason     string
	Rejections []proposal.Rejection
	Err        error
}

func (e *GenerationError) Error() string {
	if errors.Is(e.Err, ErrUpstream) {
		return fmt.Sprintf("generation failed for week of %s: %s", e.WeekStart, e.Reason)
	}
	return fmt.Sprintf("no tasks could be scheduled for week of %s: %s", e.WeekStart, e.Reason)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// RejectionSummary lists each dropped proposal on its own line.
func (e *GenerationError) RejectionSummary() string {
	var b strings.Builder
	for _, r := range e.Rejections {
		fmt.Fprintf(&b, "- %s %s %s: [%s] %s\n", r.Proposal.TaskID, r.Proposal.ScheduledDate, r.Proposal.StartTime, r.Rule, r.Reason)
	}
	return b.String()
}

// TaskContext is one task handed to the generator with what is already placed.
type TaskContext struct {
	Task        scheduling.TaskDefinition
	Fulfillment scheduling.Fulfillment
	Remaining   int
}

// BusyBlock is time a member is unavailable.
type BusyBlock struct {
	UserID string
	Date   scheduling.Date
	Window scheduling.TimeWindow
	Label  string
}

// BusyTimeSource supplies calendar busy times. It is optional.
type BusyTimeSource interface {
	BusyTimes(ctx context.Context, userIDs []string, from, to scheduling.Date) ([]BusyBlock, error)
}

// GenerationInput is everything the generator sees for one week.
type GenerationInput struct {
	Family  family.Family
	Members family.Members
	Window  scheduling.Window
	Tasks   []TaskContext
	Busy    []BusyBlock
}

// ProposalGenerator proposes candidate placements. Its output is untrusted.
type ProposalGenerator interface {
	Generate(ctx context.Context, in GenerationInput) (*proposal.Generation, error)
}

func newID() string {
	return uuid.NewString()
}
