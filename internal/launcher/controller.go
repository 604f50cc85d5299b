package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/event"
)

const TriggerManual = "manual"

// Controller launches the assistant on behalf of the detection loop and the control surface.
// Launch failures are logged and published but never returned.
type Controller struct {
	Launcher Launcher
	// Entry is the assistant's entry point. A relative path is resolved
	// against the directory that contains the daemon's executable.
	Entry string
	// Instances, when set, prevents launching the assistant while it is still running.
	Instances InstanceFinder
	Events    event.Publisher
	Logger    *zap.Logger

	executable func() (string, error)
}

// EntryPath returns the absolute path of the assistant's entry point.
func (c *Controller) EntryPath() (string, error) {
	if filepath.IsAbs(c.Entry) {
		return c.Entry, nil
	}

	executable := c.executable
	if executable == nil {
		executable = os.Executable
	}

	self, err := executable()
	if err != nil {
		return "", fmt.Errorf("locate daemon executable: %w", err)
	}

	if resolved, err := filepath.EvalSymlinks(self); err == nil {
		self = resolved
	}

	return filepath.Join(filepath.Dir(self), c.Entry), nil
}

// Launch starts the assistant once. The trigger names the cause for logging, e.g. the keyword.
func (c *Controller) Launch(trigger string) {
	logger := c.Logger.With(zap.String("trigger", trigger))

	path, err := c.EntryPath()
	if err != nil {
		logger.Error("failed to resolve assistant entry point", zap.Error(err))
		c.publish(event.Event{Type: event.LaunchFailed, Trigger: trigger, Error: err.Error()})
		return
	}

	if c.Instances != nil {
		pid, found, err := c.Instances.FindRunning(path)
		if err != nil {
			logger.Warn("failed to check for a running assistant", zap.Error(err))
		} else if found {
			logger.Info("assistant is already running, not launching another one", zap.Int("pid", pid))
			c.publish(event.Event{Type: event.LaunchSkipped, Trigger: trigger, PID: pid})
			return
		}
	}

	result, err := c.Launcher.LaunchAssistant(path)
	if err != nil {
		logger.Error("failed to launch assistant", zap.String("path", path), zap.Error(err))
		c.publish(event.Event{Type: event.LaunchFailed, Trigger: trigger, Error: err.Error()})
		return
	}

	logger.Info("launched assistant", zap.String("path", path), zap.Int("pid", result.PID))
	c.publish(event.Event{Type: event.Launched, Trigger: trigger, PID: result.PID})
}

func (c *Controller) publish(evt event.Event) {
	if c.Events == nil {
		return
	}

	evt.Time = time.Now()
	c.Events.Publish(evt)
}
