package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/mgoltzsche/wakelauncher/internal/audio"
	"github.com/mgoltzsche/wakelauncher/internal/control"
	"github.com/mgoltzsche/wakelauncher/internal/detector"
	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/launcher"
	"github.com/mgoltzsche/wakelauncher/internal/wakeword"
)

func detectorConfigForTests() detector.Config {
	return detector.Config{
		Cooldown:     2 * time.Second,
		IdleInterval: time.Millisecond,
		ErrorBackoff: time.Millisecond,
	}
}

func awaitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not terminate")
		return nil
	}
}

func awaitPhase(t *testing.T, m *Manager, phase Phase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.Phase() == phase
	}, 5*time.Second, time.Millisecond, "phase %s", phase)
}

func TestSpotterInitFailureAbortsStartup(t *testing.T) {
	d := newTestDaemon()
	d.spotterErr = &wakeword.EngineInitError{Engine: "fake", Err: errFake}

	err := d.Run(context.Background())

	var initErr *wakeword.EngineInitError
	require.ErrorAs(t, err, &initErr)
	require.Equal(t, []string{"create spotter"}, d.rec.Calls(), "neither audio nor surface should be created")
	require.Equal(t, Stopped, d.Phase())
	require.False(t, d.State().Running(), "running")
}

func TestAudioFailureReleasesSpotter(t *testing.T) {
	for _, c := range []struct {
		name  string
		setup func(*testDaemon)
		calls []string
	}{
		{
			name:  "device",
			setup: func(d *testDaemon) { d.deviceErr = audio.ErrNoInputDevice },
			calls: []string{"create spotter", "create device", "release spotter"},
		},
		{
			name:  "stream",
			setup: func(d *testDaemon) { d.device.openErr = errFake },
			calls: []string{"create spotter", "create device", "open stream", "close device", "release spotter"},
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			d := newTestDaemon()
			c.setup(d)

			err := d.Run(context.Background())

			require.Error(t, err)
			require.Equal(t, c.calls, d.rec.Calls(), "calls")
			require.Equal(t, []string{"spotter-ready", "stopped"}, d.events.Phases(), "phases")
		})
	}
}

func TestSurfaceFailureReleasesAudioAndSpotter(t *testing.T) {
	d := newTestDaemon()
	d.surfaceErr = errFake

	err := d.Run(context.Background())

	require.ErrorIs(t, err, errFake)
	require.Equal(t, []string{
		"create spotter", "create device", "open stream", "create surface",
		"close stream", "close device", "release spotter",
	}, d.rec.Calls(), "calls")
}

func TestSurfaceRunErrorIsReturned(t *testing.T) {
	d := newTestDaemon()
	d.Manager.opts.Surface = func(actions control.Actions) (control.Surface, error) {
		d.surface = newFakeSurface(d.rec, actions)
		d.surface.runErr = errFake
		return d.surface, nil
	}

	err := d.Run(context.Background())

	require.ErrorIs(t, err, errFake)
	require.Equal(t, 1, d.rec.Count("release spotter"), "spotter releases")
}

func TestFormatMismatchIsFatal(t *testing.T) {
	for _, format := range []audio.Format{
		{SampleRate: 44100},
		{FrameLength: 256},
	} {
		d := newTestDaemon()
		d.Manager.opts.Format = format

		err := d.Run(context.Background())

		require.Error(t, err, "format %+v", format)
		require.Equal(t, []string{"create spotter", "release spotter"}, d.rec.Calls(), "calls")
	}
}

func TestStreamIsOpenedWithSpotterFormat(t *testing.T) {
	d := newTestDaemon()
	d.Manager.opts.Format = audio.Format{SampleRate: 16000}
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	d.Controls().Exit()
	require.NoError(t, awaitResult(t, ch))

	require.Equal(t, audio.Format{SampleRate: 16000, FrameLength: 512}, d.device.stream.format)
}

func TestRunReleasesResourcesInOrderExactlyOnce(t *testing.T) {
	d := newTestDaemon()
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)

	d.Controls().Exit()
	d.Controls().Exit()

	require.NoError(t, awaitResult(t, ch))
	require.NoError(t, d.Close())

	require.Equal(t, []string{
		"create spotter", "create device", "open stream", "create surface", "run surface",
		"close stream", "close device", "release spotter",
	}, d.rec.Calls(), "calls")
	require.Equal(t, []string{"spotter-ready", "audio-ready", "ui-ready", "running", "stopped"}, d.events.Phases(), "phases")
	require.Equal(t, Stopped, d.Phase())
}

func TestCleanupAttemptsAllResourcesDespiteErrors(t *testing.T) {
	d := newTestDaemon()
	d.device.closePanic = errors.New("fake device failure")
	d.spotter.releaseErr = errors.New("fake spotter error")
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	d.device.stream.closeErr = errors.New("fake stream error")
	d.Controls().Exit()

	require.NoError(t, awaitResult(t, ch), "cleanup errors should not fail the run")

	err := d.Close()
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3, "errors")
	require.Contains(t, err.Error(), "release audio stream: fake stream error")
	require.Contains(t, err.Error(), "release audio device: panic: fake device failure", "recovered panic")
	require.Contains(t, err.Error(), "release keyword spotter: fake spotter error")
	require.Equal(t, []string{"close stream", "close device", "release spotter"}, d.rec.Calls()[5:], "release calls after the device panicked")
}

func TestHangingReadIsUnblockedBeforeSpotterRelease(t *testing.T) {
	d := newTestDaemon()
	d.device.hangReads = true
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	d.Controls().Exit()

	require.NoError(t, awaitResult(t, ch))
	require.NoError(t, d.Close())
	require.Equal(t, []string{"close stream", "close device", "release spotter"}, d.rec.Calls()[5:], "release calls")
}

func TestSpotterIsNotReleasedWhileDetectionHangs(t *testing.T) {
	d := newTestDaemon()
	d.device.hangReads = true
	d.device.unblockReads = make(chan struct{})
	t.Cleanup(func() { close(d.device.unblockReads) })
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	d.Controls().Exit()

	require.NoError(t, awaitResult(t, ch))

	err := d.Close()
	require.Error(t, err)
	require.Contains(t, err.Error(), "release keyword spotter: wake word detection is still running")
	require.Zero(t, d.rec.Count("release spotter"), "spotter releases")
	require.Equal(t, 1, d.rec.Count("close stream"), "stream closes")
	require.Equal(t, 1, d.rec.Count("close device"), "device closes")
	require.Equal(t, Stopped, d.Phase())
}

func TestWatchdogReportsHangingDetection(t *testing.T) {
	d := newTestDaemon(func(o *Options) {
		o.WatchdogInterval = 5 * time.Millisecond
		o.HeartbeatTimeout = 20 * time.Millisecond
	})
	d.device.hangReads = true
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	require.Eventually(t, func() bool {
		return len(d.events.Of(event.Stalled)) == 1
	}, 5*time.Second, time.Millisecond, "stalled event")

	d.Controls().Exit()
	require.NoError(t, awaitResult(t, ch))
	require.Equal(t, 1, d.rec.Count("release spotter"), "spotter releases")
}

func TestRestart(t *testing.T) {
	d := newTestDaemon()
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	require.False(t, d.RestartRequested(), "restart requested initially")

	d.Controls().Restart()
	d.Controls().Restart()

	require.NoError(t, awaitResult(t, ch))
	require.True(t, d.RestartRequested(), "restart requested")
	require.Len(t, d.events.Of(event.Restart), 1, "restart events")
	require.Equal(t, 1, d.rec.Count("release spotter"), "spotter releases")
	require.Equal(t, Stopped, d.Phase())
}

func TestRestartAfterExitIsIgnored(t *testing.T) {
	d := newTestDaemon()
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	d.Controls().Exit()
	require.NoError(t, awaitResult(t, ch))

	d.Controls().Restart()

	require.False(t, d.RestartRequested(), "restart requested")
	require.Empty(t, d.events.Of(event.Restart), "restart events")
}

func TestContextCancellationStopsDaemon(t *testing.T) {
	d := newTestDaemon()
	ctx, cancel := context.WithCancel(context.Background())
	ch := d.runAsync(ctx)

	awaitPhase(t, d.Manager, Running)
	cancel()

	require.NoError(t, awaitResult(t, ch))
	require.Equal(t, 1, d.rec.Count("release spotter"))
}

func TestExitBeforeSurfaceRuns(t *testing.T) {
	d := newTestDaemon()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, awaitResult(t, d.runAsync(ctx)))
	require.Equal(t, Stopped, d.Phase())
	require.Equal(t, 1, d.rec.Count("release spotter"))
}

func TestManualTriggerLaunchesOncePerCall(t *testing.T) {
	d := newTestDaemon()
	// Every frame matches, so the loop's cooldown is permanently active.
	d.spotter.match = func() bool { return true }
	ch := d.runAsync(context.Background())

	awaitPhase(t, d.Manager, Running)
	require.Eventually(t, func() bool {
		return len(d.launcher.Triggers()) == 1
	}, 5*time.Second, time.Millisecond, "detection launch")

	controls := d.Controls()
	controls.Trigger()
	controls.SetListening(false)
	controls.Trigger()

	d.Controls().Exit()
	require.NoError(t, awaitResult(t, ch))

	require.Equal(t, []string{"keyword #0", launcher.TriggerManual, launcher.TriggerManual}, d.launcher.Triggers())
}

func TestManualTriggerWhileNotRunning(t *testing.T) {
	d := newTestDaemon()

	d.Controls().Trigger()
	d.Controls().Trigger()

	require.Equal(t, []string{launcher.TriggerManual, launcher.TriggerManual}, d.launcher.Triggers())
}

func TestToggleListening(t *testing.T) {
	d := newTestDaemon()
	ch := d.runAsync(context.Background())
	awaitPhase(t, d.Manager, Running)

	controls := d.Controls()
	require.Equal(t, Running.String(), controls.Status().Phase)
	require.False(t, controls.ToggleListening(), "first toggle")
	require.False(t, d.State().Listening(), "listening state")
	require.True(t, controls.ToggleListening(), "second toggle")
	require.True(t, controls.SetListening(true), "set to current value")
	require.False(t, controls.SetListening(false), "set")

	controls.Exit()
	require.NoError(t, awaitResult(t, ch))

	require.Equal(t, []bool{true, false, true, false}, d.surface.Listening(), "surface indicator updates")

	var published []bool
	for _, e := range d.events.Of(event.Listening) {
		published = append(published, *e.Listening)
	}
	require.Equal(t, []bool{false, true, false}, published, "listening events")
	require.False(t, controls.Status().Running, "running after exit")
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "uninitialized", Uninitialized.String())
	require.Equal(t, "running", Running.String())
	require.Equal(t, "phase(42)", Phase(42).String())
}
