// Package launcher starts the assistant as an independent process.
package launcher

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Result describes a started assistant process.
type Result struct {
	PID     int
	Command []string
}

// Launcher starts the assistant entry point found at path.
type Launcher interface {
	LaunchAssistant(path string) (Result, error)
}

var _ Launcher = &Process{}

// Process launches the assistant as a detached OS process that inherits the daemon's
// environment and working directory. Its output is not captured and it is never waited for,
// other than reaping it once it exited.
type Process struct {
	// Interpreter runs the entry point when set, e.g. python3.
	Interpreter string
	Logger      *zap.Logger
}

func (p *Process) LaunchAssistant(path string) (Result, error) {
	var cmd *exec.Cmd
	if p.Interpreter != "" {
		cmd = exec.Command(p.Interpreter, path)
	} else {
		cmd = exec.Command(path)
	}

	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachedProcAttr()

	err := cmd.Start()
	if err != nil {
		return Result{}, fmt.Errorf("start assistant %s: %w", path, err)
	}

	result := Result{PID: cmd.Process.Pid, Command: cmd.Args}

	go func() {
		err := cmd.Wait()
		if err != nil {
			p.Logger.Debug("assistant process terminated", zap.Int("pid", result.PID), zap.Error(err))
			return
		}
		p.Logger.Debug("assistant process exited", zap.Int("pid", result.PID))
	}()

	return result, nil
}
