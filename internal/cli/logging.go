package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// AddLogLevelFlag registers the --log-level flag that controls the given level.
func AddLogLevelFlag(flags *pflag.FlagSet, level zap.AtomicLevel) {
	flags.Var(&logLevelFlag{level: level}, "log-level", "set the log level (DEBUG, INFO, WARN, ERROR)")
}

type logLevelFlag struct {
	level zap.AtomicLevel
}

func (f *logLevelFlag) Set(s string) error {
	var level zapcore.Level

	switch strings.ToUpper(s) {
	case "DEBUG":
		level = zapcore.DebugLevel
	case "INFO":
		level = zapcore.InfoLevel
	case "WARN":
		level = zapcore.WarnLevel
	case "ERROR":
		level = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unsupported log level %q provided. supported log levels are DEBUG, INFO, WARN, ERROR", s)
	}

	f.level.SetLevel(level)

	return nil
}

func (f *logLevelFlag) String() string {
	return strings.ToUpper(f.level.Level().String())
}

func (f *logLevelFlag) Type() string {
	return "LEVEL"
}

// NewLogger creates a human-readable console logger writing to stderr.
func NewLogger(level zap.AtomicLevel) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.Development = false
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	logger, err := config.Build()
	if err != nil {
		return zap.NewExample()
	}

	return logger
}
