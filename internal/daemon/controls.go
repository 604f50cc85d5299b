package daemon

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/control"
	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/launcher"
)

// Launcher launches the assistant, see launcher.Controller.
type Launcher interface {
	Launch(trigger string)
}

// Controls implements the actions offered by the control surface.
type Controls struct {
	state    *State
	launcher Launcher
	events   event.Publisher
	logger   *zap.Logger
	phase    func() Phase

	mutex   sync.Mutex
	surface control.Surface
	restart atomic.Bool
}

var _ control.Actions = &Controls{}

func (c *Controls) ToggleListening() bool {
	enabled := c.state.ToggleListening()
	c.listeningChanged(enabled)
	return enabled
}

func (c *Controls) SetListening(enabled bool) bool {
	if c.state.SetListening(enabled) {
		c.listeningChanged(enabled)
	}
	return enabled
}

// Trigger launches the assistant regardless of listening state and detection cooldown.
func (c *Controls) Trigger() {
	c.logger.Info("manual assistant launch requested")
	c.launcher.Launch(launcher.TriggerManual)
}

// Exit stops the daemon. Resources are released by the Manager once the surface returned.
func (c *Controls) Exit() {
	if c.state.Running() {
		c.logger.Info("exit requested")
	}

	c.state.Stop()

	if s := c.attachedSurface(); s != nil {
		s.Quit()
	}
}

func (c *Controls) Restart() {
	if c.state.Running() && !c.restart.Swap(true) {
		c.logger.Info("restart requested")
		c.events.Publish(event.Event{Type: event.Restart, Time: time.Now()})
	}

	c.Exit()
}

// RestartRequested reports whether the daemon stopped in order to be restarted.
func (c *Controls) RestartRequested() bool {
	return c.restart.Load()
}

func (c *Controls) Status() control.Status {
	return control.Status{
		Phase:     c.phase().String(),
		Running:   c.state.Running(),
		Listening: c.state.Listening(),
	}
}

func (c *Controls) attach(s control.Surface) {
	c.mutex.Lock()
	c.surface = s
	c.mutex.Unlock()

	s.SetListening(c.state.Listening())

	if !c.state.Running() {
		s.Quit()
	}
}

func (c *Controls) attachedSurface() control.Surface {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.surface
}

func (c *Controls) listeningChanged(enabled bool) {
	if enabled {
		c.logger.Info("listening resumed")
	} else {
		c.logger.Info("listening paused")
	}

	c.events.Publish(event.Event{Type: event.Listening, Time: time.Now(), Listening: &enabled})

	if s := c.attachedSurface(); s != nil {
		s.SetListening(enabled)
	}
}
