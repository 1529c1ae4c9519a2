package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes an external command, returning combined output
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// DesktopNotifier shows a popup through notify-send
type DesktopNotifier struct {
	command string
	run     CommandRunner
}

// NewDesktopNotifier creates a desktop notifier. An empty command means notify-send.
func NewDesktopNotifier(command string) *DesktopNotifier {
	if command == "" {
		command = "notify-send"
	}
	return &DesktopNotifier{command: command, run: execRunner}
}

// Name returns "desktop"
func (d *DesktopNotifier) Name() string {
	return "desktop"
}

// Notify runs the notification command with summary and body
func (d *DesktopNotifier) Notify(ctx context.Context, n Notification) error {
	out, err := d.run(ctx, d.command, "--app-name=lanwatch", n.Summary(), n.Body())
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s: %w: %s", d.command, err, msg)
		}
		return fmt.Errorf("%s: %w", d.command, err)
	}
	return nil
}
