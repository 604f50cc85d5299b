package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mgoltzsche/wakelauncher/internal/audio"
	"github.com/mgoltzsche/wakelauncher/internal/control"
	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/wakeword"
)

// recorder records calls in the order they happened across all fakes of a test.
type recorder struct {
	mutex sync.Mutex
	calls []string
}

func (r *recorder) record(call string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) Calls() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]string{}, r.calls...)
}

func (r *recorder) Count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

type fakeSpotter struct {
	rec        *recorder
	match      func() bool
	releaseErr error
}

func (s *fakeSpotter) SampleRate() int  { return 16000 }
func (s *fakeSpotter) FrameLength() int { return 512 }

func (s *fakeSpotter) Process(frame []int16) (int, error) {
	if s.match != nil && s.match() {
		return 0, nil
	}
	return wakeword.NoMatch, nil
}

func (s *fakeSpotter) Release() error {
	s.rec.record("release spotter")
	return s.releaseErr
}

type fakeDevice struct {
	rec        *recorder
	openErr    error
	closePanic error
	stream     *fakeStream
	// hangReads makes every read block until the stream is closed.
	hangReads bool
	// unblockReads, if set, keeps hanging reads blocked despite Close until it is closed.
	unblockReads chan struct{}
}

func (d *fakeDevice) OpenStream(format audio.Format) (audio.Stream, error) {
	d.rec.record("open stream")
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.stream = &fakeStream{
		rec:     d.rec,
		format:  format,
		hang:    d.hangReads,
		unblock: d.unblockReads,
		closed:  make(chan struct{}),
	}
	return d.stream, nil
}

func (d *fakeDevice) Close() error {
	d.rec.record("close device")
	if d.closePanic != nil {
		panic(d.closePanic)
	}
	return nil
}

type fakeStream struct {
	rec       *recorder
	format    audio.Format
	closeErr  error
	hang      bool
	unblock   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) ReadFrame() (audio.Frame, error) {
	if s.hang {
		if s.unblock != nil {
			<-s.unblock
		} else {
			<-s.closed
		}
		return nil, errors.New("fake stream closed")
	}
	time.Sleep(time.Millisecond)
	return make(audio.Frame, s.format.FrameLength), nil
}

func (s *fakeStream) Close() error {
	s.rec.record("close stream")
	s.closeOnce.Do(func() { close(s.closed) })
	return s.closeErr
}

type fakeSurface struct {
	rec       *recorder
	actions   control.Actions
	runErr    error
	quit      chan struct{}
	quitOnce  sync.Once
	mutex     sync.Mutex
	listening []bool
}

func newFakeSurface(rec *recorder, actions control.Actions) *fakeSurface {
	return &fakeSurface{rec: rec, actions: actions, quit: make(chan struct{})}
}

func (s *fakeSurface) Run(ctx context.Context) error {
	s.rec.record("run surface")
	if s.runErr != nil {
		return s.runErr
	}
	select {
	case <-s.quit:
	case <-ctx.Done():
	}
	return nil
}

func (s *fakeSurface) SetListening(enabled bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.listening = append(s.listening, enabled)
}

func (s *fakeSurface) Listening() []bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]bool{}, s.listening...)
}

func (s *fakeSurface) Quit() {
	s.quitOnce.Do(func() { close(s.quit) })
}

type fakeLauncher struct {
	mutex    sync.Mutex
	triggers []string
}

func (l *fakeLauncher) Launch(trigger string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.triggers = append(l.triggers, trigger)
}

func (l *fakeLauncher) Triggers() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string{}, l.triggers...)
}

type recordedEvents struct {
	mutex  sync.Mutex
	events []event.Event
}

func (r *recordedEvents) Publish(evt event.Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordedEvents) Phases() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var phases []string
	for _, e := range r.events {
		if e.Type == event.Phase {
			phases = append(phases, e.Phase)
		}
	}
	return phases
}

func (r *recordedEvents) Of(t event.Type) []event.Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	var events []event.Event
	for _, e := range r.events {
		if e.Type == t {
			events = append(events, e)
		}
	}
	return events
}

// testDaemon bundles a Manager with the fakes it was created from.
type testDaemon struct {
	*Manager
	rec      *recorder
	spotter  *fakeSpotter
	device   *fakeDevice
	surface  *fakeSurface
	launcher *fakeLauncher
	events   *recordedEvents

	spotterErr error
	deviceErr  error
	surfaceErr error
}

func newTestDaemon(opts ...func(*Options)) *testDaemon {
	rec := &recorder{}
	d := &testDaemon{
		rec:      rec,
		spotter:  &fakeSpotter{rec: rec},
		device:   &fakeDevice{rec: rec},
		launcher: &fakeLauncher{},
		events:   &recordedEvents{},
	}
	o := Options{
		Spotter: func() (wakeword.Spotter, error) {
			rec.record("create spotter")
			if d.spotterErr != nil {
				return nil, d.spotterErr
			}
			return d.spotter, nil
		},
		Device: func() (audio.Device, error) {
			rec.record("create device")
			if d.deviceErr != nil {
				return nil, d.deviceErr
			}
			return d.device, nil
		},
		Surface: func(actions control.Actions) (control.Surface, error) {
			rec.record("create surface")
			if d.surfaceErr != nil {
				return nil, d.surfaceErr
			}
			d.surface = newFakeSurface(rec, actions)
			return d.surface, nil
		},
		Launcher:        d.launcher,
		Detection:       detectorConfigForTests(),
		ShutdownTimeout: 200 * time.Millisecond,
		Events:          d.events,
	}
	for _, opt := range opts {
		opt(&o)
	}
	d.Manager = NewManager(o)
	return d
}

// runAsync runs the daemon and returns a channel that receives its result.
func (d *testDaemon) runAsync(ctx context.Context) <-chan error {
	ch := make(chan error, 1)
	go func() {
		ch <- d.Run(ctx)
	}()
	return ch
}

var errFake = errors.New("fake error")
