package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/cli"
	"github.com/mgoltzsche/wakelauncher/pkg/config"
)

const envVarPrefix = "WAKELAUNCHER_"

type options struct {
	cfg        config.Configuration
	configFlag config.Flag
	envFile    string
	logLevel   zap.AtomicLevel
	logger     *zap.Logger
}

func newOptions() *options {
	logLevel := zap.NewAtomicLevelAt(zap.InfoLevel)

	return &options{
		cfg:        config.Defaults(),
		configFlag: config.Flag{File: config.DefaultFile()},
		envFile:    ".env",
		logLevel:   logLevel,
		logger:     cli.NewLogger(logLevel),
	}
}

func (o *options) addFlags(f *pflag.FlagSet) {
	cfg := &o.cfg

	f.Var(&o.configFlag, "config", "path to the configuration file")
	f.StringVar(&o.envFile, "env-file", o.envFile, "path to a .env file to load environment variables from")
	cli.AddLogLevelFlag(f, o.logLevel)

	f.StringVar(&cfg.AccessKey, "access-key", cfg.AccessKey, "Picovoice access key, defaults to PICOVOICE_ACCESS_KEY")
	f.StringVar(&cfg.KeywordPath, "keyword-path", cfg.KeywordPath, "path to a custom keyword model file (.ppn), takes precedence over --keywords")
	f.Var(&cli.StringList{Values: &cfg.Keywords}, "keywords", "comma-separated list of built-in wake words")
	f.Float32Var(&cfg.Sensitivity, "sensitivity", cfg.Sensitivity, "detection sensitivity within [0,1]")
	f.StringVar(&cfg.InputDevice, "input-device", cfg.InputDevice, "name or ID of the audio input device")
	f.StringVar(&cfg.InputFile, "input-file", cfg.InputFile, "replay a 16-bit wave file instead of recording from the microphone")
	f.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "expected sample rate, 0 to use the keyword engine's")
	f.IntVar(&cfg.FrameLength, "frame-length", cfg.FrameLength, "expected frame length, 0 to use the keyword engine's")
	f.DurationVar(&cfg.Cooldown.Duration, "cooldown", cfg.Cooldown.Duration, "time after a detection during which further detections are ignored")
	f.DurationVar(&cfg.IdleInterval.Duration, "idle-interval", cfg.IdleInterval.Duration, "interval to check whether listening was resumed")
	f.DurationVar(&cfg.ErrorBackoff.Duration, "error-backoff", cfg.ErrorBackoff.Duration, "pause after an audio or detection error")
	f.IntVar(&cfg.MaxConsecutiveFailures, "max-failures", cfg.MaxConsecutiveFailures, "consecutive detection failures after which the escalated backoff applies, 0 to disable")
	f.DurationVar(&cfg.EscalatedBackoff.Duration, "escalated-backoff", cfg.EscalatedBackoff.Duration, "pause after repeated detection failures")
	f.DurationVar(&cfg.WatchdogInterval.Duration, "watchdog-interval", cfg.WatchdogInterval.Duration, "interval at which the detection heartbeat is checked")
	f.DurationVar(&cfg.HeartbeatTimeout.Duration, "heartbeat-timeout", cfg.HeartbeatTimeout.Duration, "warn when wake word detection did not iterate for this long")
	f.StringVar(&cfg.Assistant.Entry, "assistant", cfg.Assistant.Entry, "assistant entry point, relative to the wakelauncher executable unless absolute")
	f.StringVar(&cfg.Assistant.Interpreter, "interpreter", cfg.Assistant.Interpreter, "interpreter to run the assistant entry point with")
	f.BoolVar(&cfg.Assistant.SingleInstance, "single-instance", cfg.Assistant.SingleInstance, "do not launch the assistant while it is still running")
	f.StringVar(&cfg.Surface, "surface", cfg.Surface, "control surface: tray or http")
	f.StringVar(&cfg.Listen, "listen", cfg.Listen, "address the http control surface listens on")
	f.BoolVar(&cfg.TLS.Enabled, "tls", cfg.TLS.Enabled, "serve the http control surface via TLS")
	f.StringVar(&cfg.TLS.Cert, "tls-cert", cfg.TLS.Cert, "path to the TLS certificate file, generated when empty")
	f.StringVar(&cfg.TLS.Key, "tls-key", cfg.TLS.Key, "path to the TLS key file, generated when empty")
	f.BoolVar(&cfg.MDNS.Enabled, "mdns", cfg.MDNS.Enabled, "advertise the http control surface via mDNS")
	f.StringVar(&cfg.MDNS.Name, "mdns-name", cfg.MDNS.Name, "mDNS instance name")

	cli.AnnotateEnvVars(f, envVarPrefix)
}

// loadConfig applies the configuration sources in order of increasing precedence:
// defaults, config file, .env file, environment variables and flags.
func (o *options) loadConfig(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	changed := cli.ChangedFlags(flags)

	if !flags.Changed("env-file") {
		if envFile := os.Getenv(cli.EnvVarName(envVarPrefix, "env-file")); envFile != "" {
			o.envFile = envFile
		}
	}

	loaded, err := config.LoadDotEnv(o.envFile)
	if err != nil {
		return err
	}

	// Resolves the config file location from the environment.
	err = cli.ApplyEnvVars(flags, envVarPrefix)
	if err != nil {
		return err
	}

	o.cfg, err = o.configFlag.Load()
	if err != nil {
		return err
	}

	err = cli.ApplyEnvVars(flags, envVarPrefix)
	if err != nil {
		return err
	}

	err = cli.ReapplyFlags(flags, changed)
	if err != nil {
		return err
	}

	o.cfg.AccessKeyFromEnv()

	if loaded {
		o.logger.Debug("loaded env file", zap.String("path", o.envFile))
	}
	if o.configFlag.IsSet {
		o.logger.Debug("loaded config file", zap.String("path", o.configFlag.File))
	}

	return nil
}
