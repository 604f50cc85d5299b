package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/audio"
	"github.com/mgoltzsche/wakelauncher/internal/control"
	"github.com/mgoltzsche/wakelauncher/internal/detector"
	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/wakeword"
)

const DefaultShutdownTimeout = 2 * time.Second

type Phase int32

const (
	Uninitialized Phase = iota
	SpotterReady
	AudioReady
	UIReady
	Running
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case SpotterReady:
		return "spotter-ready"
	case AudioReady:
		return "audio-ready"
	case UIReady:
		return "ui-ready"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}

	return fmt.Sprintf("phase(%d)", int32(p))
}

type (
	SpotterFactory func() (wakeword.Spotter, error)
	DeviceFactory  func() (audio.Device, error)
	SurfaceFactory func(actions control.Actions) (control.Surface, error)
)

type Options struct {
	Spotter  SpotterFactory
	Device   DeviceFactory
	Surface  SurfaceFactory
	Launcher Launcher
	// Format is the configured audio format. Zero values are replaced with the spotter's requirements.
	Format    audio.Format
	Detection detector.Config
	// ShutdownTimeout bounds the time to wait for the detection loop to terminate.
	ShutdownTimeout time.Duration
	// WatchdogInterval is the interval at which the detection loop's heartbeat is checked.
	WatchdogInterval time.Duration
	// HeartbeatTimeout is the heartbeat age after which the watchdog warns.
	HeartbeatTimeout time.Duration
	Events           event.Publisher
	Logger           *zap.Logger
}

// Manager initializes the daemon's components in order, runs them and releases them once.
type Manager struct {
	opts     Options
	logger   *zap.Logger
	events   event.Publisher
	state    *State
	controls *Controls
	phase    atomic.Int32

	spotter  wakeword.Spotter
	device   audio.Device
	stream   audio.Stream
	loopDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Events == nil {
		opts.Events = event.Discard
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	m := &Manager{
		opts:   opts,
		logger: opts.Logger,
		events: opts.Events,
		state:  NewState(),
	}
	m.controls = &Controls{
		state:    m.state,
		launcher: opts.Launcher,
		events:   opts.Events,
		logger:   opts.Logger,
		phase:    m.Phase,
	}

	return m
}

func (m *Manager) Phase() Phase {
	return Phase(m.phase.Load())
}

func (m *Manager) State() *State {
	return m.state
}

func (m *Manager) Controls() *Controls {
	return m.controls
}

// RestartRequested reports whether the daemon was stopped by the restart action.
func (m *Manager) RestartRequested() bool {
	return m.controls.RestartRequested()
}

// Run initializes the components, blocks while the control surface runs and releases all resources.
// Cancelling the context has the same effect as the exit action.
func (m *Manager) Run(ctx context.Context) (err error) {
	defer func() {
		cerr := m.Close()
		if cerr != nil {
			m.logger.Warn("released resources with errors", zap.Error(cerr))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			m.controls.Exit()
		case <-m.state.Done():
		}
	}()

	surface, err := m.init()
	if err != nil {
		m.state.Stop()
		return err
	}

	m.startDetection()

	m.setPhase(Running)
	m.logger.Info("wake word daemon running")

	err = surface.Run(ctx)

	m.state.Stop()

	if err != nil {
		return fmt.Errorf("run control surface: %w", err)
	}

	return nil
}

func (m *Manager) init() (control.Surface, error) {
	spotter, err := m.opts.Spotter()
	if err != nil {
		return nil, fmt.Errorf("initialize keyword spotter: %w", err)
	}

	m.spotter = spotter
	m.setPhase(SpotterReady)
	m.logger.Info("keyword spotter ready",
		zap.Int("sampleRate", spotter.SampleRate()),
		zap.Int("frameLength", spotter.FrameLength()))

	format, err := m.audioFormat(spotter)
	if err != nil {
		return nil, err
	}

	device, err := m.opts.Device()
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}

	m.device = device

	stream, err := device.OpenStream(format)
	if err != nil {
		return nil, fmt.Errorf("open audio stream: %w", err)
	}

	m.stream = stream
	m.setPhase(AudioReady)
	m.logger.Info("audio input ready",
		zap.Int("sampleRate", format.SampleRate),
		zap.Int("frameLength", format.FrameLength))

	surface, err := m.opts.Surface(m.controls)
	if err != nil {
		return nil, fmt.Errorf("create control surface: %w", err)
	}

	m.controls.attach(surface)
	m.setPhase(UIReady)
	m.logger.Info("control surface ready")

	return surface, nil
}

func (m *Manager) audioFormat(spotter wakeword.Spotter) (audio.Format, error) {
	format := audio.Format{
		SampleRate:  spotter.SampleRate(),
		FrameLength: spotter.FrameLength(),
	}

	configured := m.opts.Format

	if configured.SampleRate != 0 && configured.SampleRate != format.SampleRate {
		return format, fmt.Errorf("configured sample rate %d does not match the %d required by the keyword spotter", configured.SampleRate, format.SampleRate)
	}

	if configured.FrameLength != 0 && configured.FrameLength != format.FrameLength {
		return format, fmt.Errorf("configured frame length %d does not match the %d required by the keyword spotter", configured.FrameLength, format.FrameLength)
	}

	return format, nil
}

func (m *Manager) startDetection() {
	loop := detector.New(m.opts.Detection, m.state, m.stream, m.spotter, m.opts.Launcher, m.events, m.logger)
	m.loopDone = make(chan struct{})

	go func() {
		defer close(m.loopDone)
		loop.Run()
	}()

	watchdog := NewWatchdog(loop, m.opts.WatchdogInterval, m.opts.HeartbeatTimeout, m.events, m.logger)
	go watchdog.Run(m.state.Done())
}

// Close stops the daemon and releases stream, device and spotter, in that order.
// The spotter is only released once the detection loop terminated.
// Only the first call has an effect, subsequent calls return the same error.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.state.Stop()
		stopped := m.awaitDetection()
		m.closeErr = m.release(stopped)
		m.setPhase(Stopped)
		m.logger.Info("wake word daemon stopped")
	})

	return m.closeErr
}

// awaitDetection returns false when the detection loop did not terminate within the shutdown timeout.
func (m *Manager) awaitDetection() bool {
	if m.loopDone == nil {
		return true
	}

	timer := time.NewTimer(m.opts.ShutdownTimeout)
	defer timer.Stop()

	select {
	case <-m.loopDone:
		return true
	case <-timer.C:
		m.logger.Warn("wake word detection did not stop in time",
			zap.Duration("timeout", m.opts.ShutdownTimeout))
		return false
	}
}

func (m *Manager) release(detectionStopped bool) error {
	var err error

	if m.stream != nil {
		err = multierr.Append(err, m.releaseResource("audio stream", m.stream.Close))
	}

	if !detectionStopped {
		// Closing the stream unblocks a pending read.
		detectionStopped = m.awaitDetection()
	}

	if m.device != nil {
		err = multierr.Append(err, m.releaseResource("audio device", m.device.Close))
	}

	if m.spotter != nil {
		if detectionStopped {
			err = multierr.Append(err, m.releaseResource("keyword spotter", m.spotter.Release))
		} else {
			m.logger.Error("not releasing keyword spotter since wake word detection is still running")
			err = multierr.Append(err, errors.New("release keyword spotter: wake word detection is still running"))
		}
	}

	return err
}

func (m *Manager) releaseResource(name string, release func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("release %s: panic: %v", name, r)
		}

		if err != nil {
			m.logger.Warn("failed to release "+name, zap.Error(err))
			return
		}

		m.logger.Info("released " + name)
	}()

	err = release()
	if err != nil {
		err = fmt.Errorf("release %s: %w", name, err)
	}

	return err
}

func (m *Manager) setPhase(p Phase) {
	if Phase(m.phase.Swap(int32(p))) == p {
		return
	}

	m.logger.Debug("lifecycle phase changed", zap.Stringer("phase", p))
	m.events.Publish(event.Event{Type: event.Phase, Time: time.Now(), Phase: p.String()})
}
