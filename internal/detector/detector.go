// Package detector runs the wake word detection loop.
package detector

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/audio"
	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/wakeword"
)

const (
	DefaultCooldown     = 2 * time.Second
	DefaultIdleInterval = 100 * time.Millisecond
	DefaultErrorBackoff = 500 * time.Millisecond

	DefaultMaxConsecutiveFailures = 5
	DefaultEscalatedBackoff       = 5 * time.Second
)

// State is the daemon state the loop observes.
type State interface {
	Running() bool
	Listening() bool
	// Done is closed when Running turns false.
	Done() <-chan struct{}
}

// Launcher starts the assistant.
type Launcher interface {
	Launch(trigger string)
}

// KeywordNamer maps a keyword index to its name.
type KeywordNamer interface {
	Keyword(index int) string
}

type Config struct {
	// Cooldown is the time after a detection during which further detections are ignored.
	Cooldown time.Duration
	// IdleInterval is the time the loop sleeps between checks while listening is disabled.
	IdleInterval time.Duration
	// ErrorBackoff is the time the loop pauses after a failed read or spotter call.
	ErrorBackoff time.Duration
	// MaxConsecutiveFailures is the number of failed iterations in a row after which
	// the loop pauses for EscalatedBackoff instead of ErrorBackoff.
	MaxConsecutiveFailures int
	EscalatedBackoff       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Cooldown:               DefaultCooldown,
		IdleInterval:           DefaultIdleInterval,
		ErrorBackoff:           DefaultErrorBackoff,
		MaxConsecutiveFailures: DefaultMaxConsecutiveFailures,
		EscalatedBackoff:       DefaultEscalatedBackoff,
	}
}

// Loop feeds audio frames to the spotter and launches the assistant when a keyword was detected.
// The stream and spotter are used by the loop exclusively.
type Loop struct {
	config   Config
	state    State
	stream   audio.Stream
	spotter  wakeword.Spotter
	launcher Launcher
	events   event.Publisher
	logger   *zap.Logger

	now           func() time.Time
	sleep         func(time.Duration)
	cooldownUntil time.Time
	failures      int
	heartbeat     atomic.Int64
}

func New(
	config Config,
	state State,
	stream audio.Stream,
	spotter wakeword.Spotter,
	launcher Launcher,
	events event.Publisher,
	logger *zap.Logger,
) *Loop {
	if events == nil {
		events = event.Discard
	}

	l := &Loop{
		config:   config,
		state:    state,
		stream:   stream,
		spotter:  spotter,
		launcher: launcher,
		events:   events,
		logger:   logger,
		now:      time.Now,
	}
	l.sleep = l.interruptibleSleep

	return l
}

// Run blocks until the state stops running.
func (l *Loop) Run() {
	l.logger.Info("wake word detection started", zap.Duration("cooldown", l.config.Cooldown))
	defer l.logger.Info("wake word detection stopped")

	for l.state.Running() {
		l.beat()

		if !l.state.Listening() {
			l.sleep(l.config.IdleInterval)
			continue
		}

		l.safeStep()
	}
}

func (l *Loop) safeStep() {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("recovered from panic within wake word detection", zap.Any("panic", r))
			l.backoff()
		}
	}()

	l.step()
}

// LastHeartbeat returns the time of the loop's latest iteration.
// It returns the zero time before the loop has started.
func (l *Loop) LastHeartbeat() time.Time {
	nanos := l.heartbeat.Load()
	if nanos == 0 {
		return time.Time{}
	}

	return time.Unix(0, nanos)
}

func (l *Loop) beat() {
	l.heartbeat.Store(l.now().UnixNano())
}

// step reads and processes a single frame.
func (l *Loop) step() {
	frame, err := l.stream.ReadFrame()
	if err != nil {
		l.logger.Warn("failed to read audio frame", zap.Error(err))
		l.backoff()
		return
	}

	index, err := l.spotter.Process(frame)
	if err != nil {
		l.logger.Warn("failed to process audio frame", zap.Error(err))
		l.backoff()
		return
	}

	l.failures = 0

	if index == wakeword.NoMatch || index < 0 {
		return
	}

	keyword := l.keyword(index)
	now := l.now()

	if now.Before(l.cooldownUntil) {
		l.logger.Debug("ignoring wake word during cooldown",
			zap.String("keyword", keyword),
			zap.Duration("remaining", l.cooldownUntil.Sub(now)))
		l.events.Publish(event.Event{Type: event.DetectionIgnored, Time: now, Keyword: keyword})
		return
	}

	l.cooldownUntil = now.Add(l.config.Cooldown)

	l.logger.Info("wake word detected", zap.String("keyword", keyword))
	l.events.Publish(event.Event{Type: event.Detected, Time: now, Keyword: keyword})
	l.launcher.Launch(keyword)
}

// backoff pauses after a failed iteration, longer once failures keep repeating.
func (l *Loop) backoff() {
	l.failures++

	if limit := l.config.MaxConsecutiveFailures; limit > 0 && l.failures > limit {
		l.logger.Error("wake word detection keeps failing, backing off",
			zap.Int("consecutiveFailures", l.failures),
			zap.Duration("backoff", l.config.EscalatedBackoff))
		l.sleep(l.config.EscalatedBackoff)
		return
	}

	l.sleep(l.config.ErrorBackoff)
}

func (l *Loop) keyword(index int) string {
	if namer, ok := l.spotter.(KeywordNamer); ok {
		return namer.Keyword(index)
	}

	return wakeword.Keywords{}.Name(index)
}

func (l *Loop) interruptibleSleep(d time.Duration) {
	if d <= 0 {
		return
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-l.state.Done():
	}
}
