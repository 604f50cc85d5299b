// Package main is the CLI entry point for wakelauncher.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mgoltzsche/wakelauncher/internal/audio"
	"github.com/mgoltzsche/wakelauncher/internal/wakeword"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	o := newOptions()
	rootCmd := newRootCmd(o)

	if err := rootCmd.Execute(); err != nil {
		o.logger.Error(err.Error())
		_ = o.logger.Sync()
		os.Exit(1)
	}
}

func newRootCmd(o *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wakelauncher",
		Short: "Launches an assistant when a wake word is spoken",
		Long: `wakelauncher listens to the microphone in the background and launches
the assistant program whenever one of the configured wake words is detected.
Listening can be paused, and the assistant launched manually, via the tray
icon or, on headless hosts, via an HTTP API.`,
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: o.loadConfig,
		RunE:              o.runDaemon,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the wake word daemon (default)",
		RunE:  o.runDaemon,
	}

	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio input devices",
		RunE:  o.listDevices,
	}

	keywordsCmd := &cobra.Command{
		Use:   "keywords",
		Short: "List the built-in wake words",
		Run:   listKeywords,
	}

	jsonOutput := false
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd, jsonOutput)
		},
	}
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	o.addFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

func (o *options) runDaemon(cmd *cobra.Command, args []string) error {
	if err := o.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	restart, err := runDaemon(ctx, o.cfg, o.logger)
	if err != nil || !restart {
		return err
	}

	stop()

	return restartProcess(o.logger)
}

func (o *options) listDevices(cmd *cobra.Command, args []string) error {
	input, err := audio.OpenInput(o.cfg.InputDevice, o.logger)
	if err != nil {
		return err
	}
	defer input.Close()

	return audio.PrintInputDevices(cmd.OutOrStdout())
}

func listKeywords(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), strings.Join(wakeword.BuiltInKeywords(), "\n"))
}

func printVersion(cmd *cobra.Command, jsonOutput bool) {
	w := cmd.OutOrStdout()

	if jsonOutput {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		return
	}

	fmt.Fprintf(w, "wakelauncher %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
}
