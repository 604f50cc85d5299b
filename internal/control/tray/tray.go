// Package tray implements the control surface as a system tray icon.
package tray

import (
	"context"
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/control"
)

// Tray shows a tray icon with a menu to toggle listening, launch the assistant, restart and exit.
// Run must be called on the main goroutine and only once per process.
type Tray struct {
	title   string
	actions control.Actions
	logger  *zap.Logger

	mutex         sync.Mutex
	listening     bool
	ready         bool
	quitRequested bool
	listeningItem *systray.MenuItem
	done          chan struct{}
}

var _ control.Surface = &Tray{}

func New(title string, actions control.Actions, logger *zap.Logger) *Tray {
	return &Tray{
		title:     title,
		actions:   actions,
		logger:    logger,
		listening: actions.Status().Listening,
		done:      make(chan struct{}),
	}
}

func (t *Tray) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-ctx.Done():
			t.Quit()
		case <-t.done:
		}
	}()

	systray.Run(t.onReady, t.onExit)

	return nil
}

func (t *Tray) SetListening(enabled bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.listening = enabled

	if t.ready {
		t.render()
	}
}

func (t *Tray) Quit() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.quitRequested {
		return
	}

	t.quitRequested = true

	if t.ready {
		systray.Quit()
	}
}

func (t *Tray) onReady() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.ready = true

	if t.quitRequested {
		systray.Quit()
		return
	}

	systray.SetTitle(t.title)

	titleItem := systray.AddMenuItem(t.title, "")
	titleItem.Disable()
	systray.AddSeparator()

	t.listeningItem = systray.AddMenuItemCheckbox("Listening", "Listen for the wake word", t.listening)
	launchItem := systray.AddMenuItem("Launch assistant", "Launch the assistant now")
	systray.AddSeparator()
	restartItem := systray.AddMenuItem("Restart", "Restart the daemon")
	exitItem := systray.AddMenuItem("Exit", "Stop listening and exit")

	t.render()

	go t.handleClicks(menuClicks{
		toggle:  t.listeningItem.ClickedCh,
		launch:  launchItem.ClickedCh,
		restart: restartItem.ClickedCh,
		exit:    exitItem.ClickedCh,
	})

	t.logger.Info("tray icon ready")
}

func (t *Tray) onExit() {
	close(t.done)
	t.logger.Debug("tray icon removed")
}

type menuClicks struct {
	toggle, launch, restart, exit <-chan struct{}
}

func (t *Tray) handleClicks(m menuClicks) {
	for {
		select {
		case <-m.toggle:
			t.actions.ToggleListening()
		case <-m.launch:
			t.actions.Trigger()
		case <-m.restart:
			t.actions.Restart()
		case <-m.exit:
			t.actions.Exit()
		case <-t.done:
			return
		}
	}
}

// render updates icon, tooltip and checkbox. The caller must hold the mutex.
func (t *Tray) render() {
	b, err := icon(t.listening)
	if err != nil {
		t.logger.Warn("failed to render tray icon", zap.Error(err))
	} else {
		systray.SetIcon(b)
	}

	systray.SetTooltip(tooltip(t.title, t.listening))

	if t.listeningItem != nil {
		if t.listening {
			t.listeningItem.Check()
		} else {
			t.listeningItem.Uncheck()
		}
	}
}

func tooltip(title string, listening bool) string {
	if listening {
		return fmt.Sprintf("%s: listening for the wake word", title)
	}

	return fmt.Sprintf("%s: paused", title)
}
