// Package event defines the notifications the daemon's components publish.
package event

import (
	"time"

	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/pubsub"
)

type Type string

const (
	Phase            Type = "phase"
	Listening        Type = "listening"
	Detected         Type = "detected"
	DetectionIgnored Type = "detection-ignored"
	Launched         Type = "launched"
	LaunchFailed     Type = "launch-failed"
	LaunchSkipped    Type = "launch-skipped"
	Stalled          Type = "detection-stalled"
	Resumed          Type = "detection-resumed"
	Restart          Type = "restart"
)

// Event describes something that happened within the daemon.
type Event struct {
	Type      Type      `json:"type"`
	Time      time.Time `json:"time"`
	Phase     string    `json:"phase,omitempty"`
	Listening *bool     `json:"listening,omitempty"`
	Keyword   string    `json:"keyword,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	PID       int       `json:"pid,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type Publisher = pubsub.Publisher[Event]

// Bus is the daemon's event bus.
type Bus = pubsub.PubSub[Event]

// NewBus creates an event bus that buffers up to 32 events per subscriber.
func NewBus(logger *zap.Logger) *Bus {
	return pubsub.New[Event](32, logger)
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard is a Publisher that drops all events.
var Discard Publisher = discard{}
