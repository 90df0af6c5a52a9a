package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/events"
)

// consoleNotifier prints plan notifications while serve is running.
type consoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func newConsoleNotifier(out io.Writer) *consoleNotifier {
	return &consoleNotifier{out: out, now: time.Now}
}

func (n *consoleNotifier) Notify(_ context.Context, level events.NotificationLevel, title, message string) error {
	badge := okStyle
	switch level {
	case events.NotificationLevelWarning:
		badge = warnStyle
	case events.NotificationLevelError:
		badge = errorStyle
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.out, "%s %s %s\n", mutedStyle.Render(n.now().Format("15:04:05")), badge.Render(title), message)
	return err
}
