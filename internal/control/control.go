// Package control defines the user facing control surface of the daemon.
package control

import "context"

// Actions are the operations a surface offers to the user.
type Actions interface {
	// ToggleListening flips the listening state and returns the new value.
	ToggleListening() bool
	// SetListening enables or disables listening and returns the new value.
	SetListening(enabled bool) bool
	// Trigger launches the assistant right away, bypassing listening state and cooldown.
	Trigger()
	// Exit stops the daemon and its surface.
	Exit()
	// Restart stops the daemon like Exit and starts a new daemon process once all resources are released.
	Restart()
	Status() Status
}

// Status is a snapshot of the daemon state.
type Status struct {
	Phase     string `json:"phase"`
	Running   bool   `json:"running"`
	Listening bool   `json:"listening"`
}

// Surface is a user interface that drives Actions.
type Surface interface {
	// Run blocks until Quit is called or the context is cancelled.
	Run(ctx context.Context) error
	// SetListening updates the listening indicator.
	SetListening(enabled bool)
	// Quit makes Run return. It may be called multiple times and from any goroutine.
	Quit()
}
