package main

import (
	"fmt"
	"os"
)

// restartCommand returns the executable and arguments the current process was started with.
func restartCommand() (string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, fmt.Errorf("resolve executable to restart: %w", err)
	}

	return exe, os.Args, nil
}
