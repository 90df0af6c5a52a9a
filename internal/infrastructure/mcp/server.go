// Package mcp exposes weekly plans, edits and reports as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/mcp-go"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/application"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/family"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/planning"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/scheduling"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/storage"
)

type Server struct {
	mcpServer *mcp.Server
	services  *wiring.AppServices
	now       func() time.Time
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are omitted; only the friendly message is returned.
func mcpErr(friendly string) error {
	return fmt.Errorf("%s", friendly)
}

// domainErr keeps the message of errors that are meant for users and
// replaces everything else with friendly.
func domainErr(err error, friendly string) error {
	var violation *planning.StateViolationError
	var genErr *application.GenerationError
	switch {
	case errors.As(err, &violation):
		return mcpErr(violation.Error())
	case errors.As(err, &genErr):
		return mcpErr(genErr.Error())
	case errors.Is(err, planning.ErrPlanNotFound):
		return mcpErr("Plan not found. List plans with resolution_list_plans.")
	case errors.Is(err, planning.ErrItemNotFound):
		return mcpErr("Plan item not found. Fetch the plan again to get current item ids.")
	case errors.Is(err, planning.ErrNotFamilyMember):
		return mcpErr("That user is not a member of the family.")
	case errors.Is(err, family.ErrFamilyNotFound):
		return mcpErr("Family not found. List families with resolution_list_families.")
	case errors.Is(err, storage.ErrOccurrenceNotFound):
		return mcpErr("Occurrence not found. List the week with resolution_list_occurrences.")
	case errors.Is(err, scheduling.ErrWeekElapsed):
		return mcpErr("That week has already ended. Pick the current or a future week.")
	case errors.Is(err, scheduling.ErrConstraintViolation):
		return mcpErr(err.Error() + ". Pick a day and time the task allows.")
	}
	return mcpErr(friendly)
}

// NewServer registers the tools against already built services. The caller
// owns services and closes them.
func NewServer(services *wiring.AppServices) (*Server, error) {
	if services == nil {
		return nil, fmt.Errorf("services are required")
	}

	info := mcp.ServerInfo{
		Name:    "resolution",
		Version: Version,
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("Resolution MCP Server"),
			mcp.WithDescription("Resolution exposes family weekly plans, approvals, item edits and fairness reports to MCP clients."),
			mcp.WithWebsiteURL("https://github.com/SECURESLOG/resolution-ai-sub002"),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Read plans before editing them and pass the item version you read as expected_version. A conflict result means someone else edited first; fetch the plan and retry."),
		),
		services: services,
		now:      time.Now,
	}

	s.registerTools()
	s.registerSchemaResource()
	return s, nil
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	return mcp.ServeWebSocket(ctx, s.mcpServer, addr)
}
