//go:build !unix

package main

import (
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// restartProcess starts a new instance of the current executable and lets the current process exit.
func restartProcess(logger *zap.Logger) error {
	exe, args, err := restartCommand()
	if err != nil {
		return err
	}

	cmd := exec.Command(exe, args[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("restart %s: %w", exe, err)
	}

	logger.Info("restarted", zap.String("executable", exe), zap.Int("pid", cmd.Process.Pid))

	return cmd.Process.Release()
}
