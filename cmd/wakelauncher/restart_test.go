package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRestartCommand(t *testing.T) {
	exe, args, err := restartCommand()
	require.NoError(t, err)

	expected, err := os.Executable()
	require.NoError(t, err)
	require.Equal(t, expected, exe, "executable")
	require.Equal(t, os.Args, args, "arguments")
}
