package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	inframcp "github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/mcp"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
)

var (
	mcpTransport string
	mcpAddr      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Resolution MCP server",
	Long: `Expose plans, edits and reports as MCP tools for AI assistants.
The stdio transport is what desktop clients launch; http and ws listen on
--addr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("RESOLUTION_SKIP_MCP_START") == "true" {
			return nil
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		inframcp.Version, inframcp.BuildCommit, inframcp.BuildDate = Version, Commit, Date
		return withServices(ctx, wiring.Options{}, func(s *wiring.AppServices) error {
			server, err := inframcp.NewServer(s)
			if err != nil {
				return err
			}
			switch strings.ToLower(mcpTransport) {
			case "stdio", "":
				err = server.ServeStdio(ctx)
			case "http":
				err = server.ServeHTTP(ctx, mcpAddr)
			case "ws", "websocket":
				err = server.ServeWebSocket(ctx, mcpAddr)
			default:
				return NewCLIError(fmt.Sprintf("unsupported transport: %s", mcpTransport), "Use stdio, http or ws", nil)
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "stdio", "Transport to use (stdio, http, ws)")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", ":8090", "Address for http/ws transports")
	RootCmd.AddCommand(mcpCmd)
}
