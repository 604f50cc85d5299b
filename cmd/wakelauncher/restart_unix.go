//go:build unix

package main

import (
	"fmt"
	"os"
	"syscall"

	"go.uber.org/zap"
)

// restartProcess replaces the current process with a new instance of itself.
func restartProcess(logger *zap.Logger) error {
	exe, args, err := restartCommand()
	if err != nil {
		return err
	}

	logger.Info("restarting", zap.String("executable", exe))
	_ = logger.Sync()

	if err := syscall.Exec(exe, args, os.Environ()); err != nil {
		return fmt.Errorf("restart %s: %w", exe, err)
	}

	return nil
}
