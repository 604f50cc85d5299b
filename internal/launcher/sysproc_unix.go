//go:build unix

package launcher

import "syscall"

// detachedProcAttr starts the process within a new session so that it is not
// attached to the daemon's terminal and survives the daemon.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}
