package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/mgoltzsche/wakelauncher/internal/audio"
	"github.com/mgoltzsche/wakelauncher/internal/control"
	"github.com/mgoltzsche/wakelauncher/internal/control/httpapi"
	"github.com/mgoltzsche/wakelauncher/internal/control/tray"
	"github.com/mgoltzsche/wakelauncher/internal/daemon"
	"github.com/mgoltzsche/wakelauncher/internal/detector"
	"github.com/mgoltzsche/wakelauncher/internal/event"
	"github.com/mgoltzsche/wakelauncher/internal/launcher"
	"github.com/mgoltzsche/wakelauncher/internal/wakeword"
	"github.com/mgoltzsche/wakelauncher/pkg/config"
)

// runDaemon blocks until the daemon stopped and reports whether it should be restarted.
func runDaemon(ctx context.Context, cfg config.Configuration, logger *zap.Logger) (restart bool, err error) {
	bus := event.NewBus(logger)
	defer bus.Stop()

	controller := &launcher.Controller{
		Launcher: &launcher.Process{
			Interpreter: cfg.Assistant.Interpreter,
			Logger:      logger,
		},
		Entry:  cfg.Assistant.Entry,
		Events: bus,
		Logger: logger,
	}
	if cfg.Assistant.SingleInstance {
		controller.Instances = launcher.ProcessTable{}
	}

	if entry, err := controller.EntryPath(); err == nil {
		if _, err := os.Stat(entry); err != nil {
			logger.Warn("assistant entry point not found", zap.String("path", entry))
		} else {
			logger.Debug("assistant entry point", zap.String("path", entry))
		}
	}

	m := daemon.NewManager(daemon.Options{
		Spotter:  spotterFactory(cfg),
		Device:   deviceFactory(cfg, logger),
		Surface:  surfaceFactory(cfg, bus, logger),
		Launcher: controller,
		Format: audio.Format{
			SampleRate:  cfg.SampleRate,
			FrameLength: cfg.FrameLength,
		},
		Detection: detector.Config{
			Cooldown:               cfg.Cooldown.Duration,
			IdleInterval:           cfg.IdleInterval.Duration,
			ErrorBackoff:           cfg.ErrorBackoff.Duration,
			MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
			EscalatedBackoff:       cfg.EscalatedBackoff.Duration,
		},
		WatchdogInterval: cfg.WatchdogInterval.Duration,
		HeartbeatTimeout: cfg.HeartbeatTimeout.Duration,
		Events:           bus,
		Logger:           logger,
	})

	err = m.Run(ctx)

	return err == nil && m.RestartRequested(), err
}

func spotterFactory(cfg config.Configuration) daemon.SpotterFactory {
	return func() (wakeword.Spotter, error) {
		spotter, err := wakeword.NewPorcupine(cfg.AccessKey, wakeword.KeywordSpec{
			ModelPath:   cfg.KeywordPath,
			Keywords:    cfg.Keywords,
			Sensitivity: cfg.Sensitivity,
		})
		if err != nil {
			return nil, err
		}

		return spotter, nil
	}
}

func deviceFactory(cfg config.Configuration, logger *zap.Logger) daemon.DeviceFactory {
	return func() (audio.Device, error) {
		if cfg.InputFile != "" {
			logger.Info("replaying wave file instead of recording", zap.String("file", cfg.InputFile))

			return &audio.WavFile{
				Path:     cfg.InputFile,
				Realtime: true,
				Logger:   logger,
			}, nil
		}

		input, err := audio.OpenInput(cfg.InputDevice, logger)
		if err != nil {
			return nil, err
		}

		return input, nil
	}
}

func surfaceFactory(cfg config.Configuration, bus *event.Bus, logger *zap.Logger) daemon.SurfaceFactory {
	return func(actions control.Actions) (control.Surface, error) {
		if cfg.Surface == config.SurfaceHTTP {
			srv, err := httpapi.New(httpapi.Options{
				Listen:  cfg.Listen,
				TLS:     cfg.TLS,
				MDNS:    cfg.MDNS,
				Version: Version,
			}, actions, bus, logger)
			if err != nil {
				return nil, err
			}

			return srv, nil
		}

		return tray.New("wakelauncher", actions, logger), nil
	}
}
