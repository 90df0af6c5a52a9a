package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/scheduler"
	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
	"github.com/SECURESLOG/resolution-ai-sub002/pkg/infrastructure/dashboard"
)

var (
	serveAddr        string
	serveNoScheduler bool
	serveNoWatch     bool
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard, event streams and background jobs",
	Long: `Run the web dashboard with its JSON API, Prometheus metrics on /metrics
and live events on /ws (WebSocket) and /events (server-sent events).

While running, the scheduler expires stale pending plans and drafts next
week's plan for families with auto-generation on. Edits to config.yaml
reload messaging adapters and the log level without a restart.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := wiring.Options{Notifier: newConsoleNotifier(cmd.OutOrStdout())}
		return withServices(ctx, opts, func(s *wiring.AppServices) error {
			return serve(ctx, cmd, s)
		})
	},
}

func serve(ctx context.Context, cmd *cobra.Command, s *wiring.AppServices) error {
	addr := serveAddr
	if addr == "" {
		addr = s.Config.Server.Addr
	}
	srv, err := dashboard.NewServer(addr, dashboard.Sources{
		Families: s.Families,
		Plans:    s.Plans,
		Reports:  s.Analytics,
	}, s.Logger.Logger)
	if err != nil {
		return err
	}
	srv.Mount("GET /metrics", s.Metrics.Handler())
	srv.Mount("GET /ws", http.HandlerFunc(s.Stream.ServeWS))
	srv.Mount("GET /events", http.HandlerFunc(s.Stream.ServeSSE))

	if !serveNoScheduler {
		loc, _ := s.Config.Location()
		sched := scheduler.New(scheduler.Deps{
			Sweeper:   s.Plans,
			Generator: s.Planning,
			Families:  s.Families,
			Plans:     s.Plans,
		}, loc, s.Logger.Logger)
		if err := sched.Schedule(ctx, scheduler.Specs{
			ExpirySweep:  s.Config.Schedule.ExpirySweep,
			AutoGenerate: s.Config.Schedule.AutoGenerate,
		}); err != nil {
			return NewCLIError("invalid schedule in config.yaml", "Cron specs have six fields, seconds first", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	if !serveNoWatch {
		go func() {
			if err := s.WatchConfig(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.Logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	fmt.Fprintf(cmd.OutOrStdout(), "%s Serving on http://%s (Ctrl+C to stop)\n", okStyle.Render("✓"), addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config)")
	serveCmd.Flags().BoolVar(&serveNoScheduler, "no-scheduler", false, "Do not run the expiry sweep and auto-generation jobs")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload config.yaml on change")
	RootCmd.AddCommand(serveCmd)
}
