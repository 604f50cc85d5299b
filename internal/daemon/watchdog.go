package daemon

import (
	"time"

	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/event"
)

const (
	DefaultWatchdogInterval = 5 * time.Second
	DefaultHeartbeatTimeout = 30 * time.Second
)

// Heartbeat reports the time of the detection loop's latest iteration, see detector.Loop.
type Heartbeat interface {
	LastHeartbeat() time.Time
}

// Watchdog warns when the detection loop stops iterating, e.g. because an audio read hangs.
type Watchdog struct {
	heartbeat Heartbeat
	interval  time.Duration
	timeout   time.Duration
	events    event.Publisher
	logger    *zap.Logger
	now       func() time.Time
	stalled   bool
}

func NewWatchdog(heartbeat Heartbeat, interval, timeout time.Duration, events event.Publisher, logger *zap.Logger) *Watchdog {
	if interval <= 0 {
		interval = DefaultWatchdogInterval
	}
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	if events == nil {
		events = event.Discard
	}

	return &Watchdog{
		heartbeat: heartbeat,
		interval:  interval,
		timeout:   timeout,
		events:    events,
		logger:    logger,
		now:       time.Now,
	}
}

// Run checks the heartbeat every interval until done is closed.
func (w *Watchdog) Run(done <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watchdog) check() {
	last := w.heartbeat.LastHeartbeat()
	if last.IsZero() {
		return
	}

	now := w.now()
	elapsed := now.Sub(last)

	if elapsed > w.timeout {
		// Warn on every check while stalled, publish the transition once.
		w.logger.Warn("no heartbeat from wake word detection",
			zap.Duration("elapsed", elapsed.Round(time.Millisecond)),
			zap.Duration("timeout", w.timeout))

		if !w.stalled {
			w.stalled = true
			w.events.Publish(event.Event{Type: event.Stalled, Time: now})
		}

		return
	}

	if w.stalled {
		w.stalled = false
		w.logger.Info("wake word detection resumed")
		w.events.Publish(event.Event{Type: event.Resumed, Time: now})
	}
}
