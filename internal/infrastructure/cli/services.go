package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SECURESLOG/resolution-ai-sub002/internal/infrastructure/wiring"
)

func getProjectRoot() (string, error) {
	if projectPath != "" {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return "", fmt.Errorf("invalid workspace path %q: %w", projectPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("workspace path %q: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("workspace path %q is not a directory", abs)
		}
		return abs, nil
	}
	return os.Getwd()
}

// loadServices builds the services for the workspace. Callers close them.
func loadServices(ctx context.Context, opts wiring.Options) (*wiring.AppServices, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, err
	}
	opts.Root = root
	opts.Debug = opts.Debug || debugMode
	services, err := wiring.Build(ctx, opts)
	if err != nil {
		return nil, MapError(err)
	}
	if services.ProviderErr != nil {
		fmt.Fprintln(os.Stderr, warnStyle.Render("Warning: ")+services.ProviderErr.Error())
	}
	return services, nil
}

// withServices runs fn with freshly built services and closes them after.
func withServices(ctx context.Context, opts wiring.Options, fn func(*wiring.AppServices) error) error {
	services, err := loadServices(ctx, opts)
	if err != nil {
		return err
	}
	defer services.Close() //nolint:errcheck // close errors are logged by the services
	return MapError(fn(services))
}
