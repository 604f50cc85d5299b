package daemon

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/launcher"
)

var _ = Describe("Wake word daemon lifecycle", func() {
	var (
		d      *testDaemon
		ctx    context.Context
		cancel context.CancelFunc
		result <-chan error
	)

	BeforeEach(func() {
		d = newTestDaemon()
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
		if result != nil {
			Eventually(result, 5*time.Second).Should(Receive())
			result = nil
		}
	})

	Describe("startup", func() {
		Context("when all components initialize", func() {
			BeforeEach(func() {
				result = d.runAsync(ctx)
				Eventually(d.Phase, 5*time.Second).Should(Equal(Running))
			})

			It("should initialize spotter, audio and surface in order", func() {
				Expect(d.rec.Calls()).To(HaveExactElements(
					"create spotter", "create device", "open stream", "create surface", "run surface"))
				Expect(d.events.Phases()).To(Equal([]string{"spotter-ready", "audio-ready", "ui-ready", "running"}))
			})

			It("should start listening", func() {
				Expect(d.State().Running()).To(BeTrue())
				Expect(d.State().Listening()).To(BeTrue())
				Expect(d.surface.Listening()).To(Equal([]bool{true}))
			})
		})

		Context("when the keyword spotter fails to initialize", func() {
			BeforeEach(func() {
				d.spotterErr = errFake
			})

			It("should neither open audio nor create the surface", func() {
				err := d.Run(ctx)
				Expect(err).To(MatchError(errFake))
				Expect(d.rec.Calls()).To(Equal([]string{"create spotter"}))
				Expect(d.Phase()).To(Equal(Stopped))
			})
		})
	})

	Describe("detection", func() {
		var matching chan bool

		BeforeEach(func() {
			matching = make(chan bool, 100)
			d.spotter.match = func() bool {
				select {
				case m := <-matching:
					return m
				default:
					return false
				}
			}
			result = d.runAsync(ctx)
			Eventually(d.Phase, 5*time.Second).Should(Equal(Running))
		})

		It("should launch the assistant once per detection and ignore detections during cooldown", func() {
			matching <- true
			Eventually(d.launcher.Triggers, 5*time.Second).Should(HaveLen(1))

			matching <- true
			Eventually(func() []event.Event {
				return d.events.Of(event.DetectionIgnored)
			}, 5*time.Second).Should(HaveLen(1))

			Consistently(d.launcher.Triggers, 100*time.Millisecond).Should(HaveLen(1))
			Expect(d.events.Of(event.Detected)).To(HaveLen(1))
		})

		It("should not launch the assistant while listening is paused", func() {
			Expect(d.Controls().ToggleListening()).To(BeFalse())
			// lets a frame that was read before pausing pass
			time.Sleep(20 * time.Millisecond)
			matching <- true

			Consistently(d.launcher.Triggers, 100*time.Millisecond).Should(BeEmpty())
			Expect(matching).To(HaveLen(1), "no frame should be processed while paused")

			Expect(d.Controls().ToggleListening()).To(BeTrue())
			Eventually(d.launcher.Triggers, 5*time.Second).Should(HaveLen(1))
		})

		It("should launch the assistant on manual trigger while paused", func() {
			d.Controls().SetListening(false)
			d.Controls().Trigger()

			Expect(d.launcher.Triggers()).To(Equal([]string{launcher.TriggerManual}))
		})
	})

	Describe("shutdown", func() {
		BeforeEach(func() {
			result = d.runAsync(ctx)
			Eventually(d.Phase, 5*time.Second).Should(Equal(Running))
		})

		expectReleasedOnce := func() {
			Eventually(result, 5*time.Second).Should(Receive(BeNil()))
			result = nil
			Expect(d.Close()).To(Succeed())
			Expect(d.rec.Calls()[5:]).To(Equal([]string{"close stream", "close device", "release spotter"}))
			Expect(d.Phase()).To(Equal(Stopped))
		}

		It("should release all resources once on exit", func() {
			d.Controls().Exit()
			expectReleasedOnce()
		})

		It("should release all resources once on signal", func() {
			cancel()
			expectReleasedOnce()
		})

		It("should release all resources once when the surface quits", func() {
			d.surface.Quit()
			expectReleasedOnce()
			Expect(d.State().Running()).To(BeFalse())
		})
	})
})
