// SPDX-License-Identifier: MIT

// Command lifeboatd is the emergency-backup daemon. It watches global input
// for the activation gesture (a rectangle traced along the screen perimeter,
// or ctrl+alt+b plus clicks), and on confirmation copies the configured
// source tree onto the rescue destination.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lifeboat-sh/lifeboat/internal/api"
	"github.com/lifeboat-sh/lifeboat/internal/backup"
	"github.com/lifeboat-sh/lifeboat/internal/config"
	"github.com/lifeboat-sh/lifeboat/internal/daemon"
	"github.com/lifeboat-sh/lifeboat/internal/fleet"
	"github.com/lifeboat-sh/lifeboat/internal/health"
	"github.com/lifeboat-sh/lifeboat/internal/history"
	"github.com/lifeboat-sh/lifeboat/internal/input"
	xlog "github.com/lifeboat-sh/lifeboat/internal/log"
	"github.com/lifeboat-sh/lifeboat/internal/notify"
	"github.com/lifeboat-sh/lifeboat/internal/persistence/sqlite"
	"github.com/lifeboat-sh/lifeboat/internal/session"
	"github.com/lifeboat-sh/lifeboat/internal/sysmon"
	"github.com/lifeboat-sh/lifeboat/internal/telemetry"
	"github.com/lifeboat-sh/lifeboat/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	listen := flag.String("listen", "", "control API address (overrides config)")
	once := flag.Bool("once", false, "exit after the first completed run")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "log format: auto, json, console")
	checkHistory := flag.Bool("check-history", false, "verify the history database and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("lifeboatd %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		return 0
	}

	xlog.Configure(xlog.Config{
		Level:   *logLevel,
		Format:  *logFormat,
		Service: "lifeboat",
		Version: version.Version,
	})
	logger := xlog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	effectivePath := resolveConfigPath(*configPath)
	loader := config.NewLoader(effectivePath, version.Version)

	// An invalid or missing config does not kill the daemon: the user gets
	// a ConfigError popup and the file is watched until it loads. That is
	// the emergency-tool contract: be there when needed, even if the
	// machine booted with a broken config.
	bootNotifier := notify.NewNotifier(
		notify.NewDesktop(true),
		notify.NewSounder(false, ""),
		xlog.WithComponent("notify"),
	)
	lastCfgErr := ""
	cfg, err := config.WaitValid(ctx, loader, func(err error) {
		if err.Error() == lastCfgErr {
			return
		}
		lastCfgErr = err.Error()
		msg := "Configuration invalid"
		if field := config.FieldFromError(err); field != "" {
			msg = "Configuration invalid: check " + field
		}
		bootNotifier.Notify(ctx, notify.Notification{Kind: notify.ConfigError, Message: msg})
	})
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
		return 1
	}

	// Flags override the file and the environment.
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *once {
		cfg.Once = true
	}
	if *logLevel == "" && cfg.Log.Level != "" {
		xlog.SetLevel(cfg.Log.Level)
	}

	if effectivePath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("path", effectivePath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	historyPath := resolveHistoryPath(cfg, effectivePath)
	if *checkHistory {
		return runHistoryCheck(historyPath)
	}

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Error().
			Err(err).
			Str("event", "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
		return 1
	}

	return runDaemon(ctx, logger, loader, cfg, historyPath)
}

func runDaemon(ctx context.Context, logger zerolog.Logger, loader *config.Loader, cfg config.Config, historyPath string) int {
	holder := config.NewHolder(cfg, loader)

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "lifeboat",
		ServiceVersion: version.Version,
		Protocol:       cfg.Telemetry.Protocol,
		Endpoint:       cfg.Telemetry.Endpoint,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		logger.Error().Err(err).Msg("telemetry init failed")
		return 1
	}

	store, err := history.New(historyPath)
	if err != nil {
		logger.Error().Err(err).Str("path", historyPath).Msg("history store init failed")
		return 1
	}

	notifier := notify.NewNotifier(
		notify.NewDesktop(cfg.Notify.Desktop),
		notify.NewSounder(cfg.Notify.Sound, cfg.Notify.SoundsDir),
		xlog.WithComponent("notify"),
	)

	var publisher fleet.Publisher = fleet.Nop{}
	if cfg.Fleet.Enabled {
		redis, err := fleet.NewRedis(fleet.Config{
			Addr:     cfg.Fleet.RedisAddr,
			Node:     cfg.Fleet.Node,
			TTL:      cfg.Fleet.TTL,
			Interval: cfg.Fleet.Interval,
		}, version.Version, xlog.WithComponent("fleet"))
		if err != nil {
			// A fleet node that cannot report should say so now, not
			// during an emergency.
			logger.Error().Err(err).Msg("fleet publisher init failed")
			_ = store.Close()
			return 1
		}
		publisher = redis
	}

	var monitor sysmon.Monitor = sysmon.Nop{}
	if cfg.Sysmon.Enabled {
		monitor = sysmon.New(cfg.Sysmon.Dir, cfg.Sysmon.Interval, xlog.WithComponent("sysmon"))
	}

	var source input.Source
	x11, err := input.NewX11Source()
	if err != nil {
		logger.Warn().
			Err(err).
			Str("event", "input.unavailable").
			Msg("input capture unavailable, gestures disabled, API trigger only")
	} else {
		source = x11
	}

	loop := session.New(session.Options{
		Holder:   holder,
		Source:   source,
		Engine:   backup.NewEngine(xlog.WithComponent("backup")),
		History:  store,
		Notifier: notifier,
		Fleet:    publisher,
		Monitor:  monitor,
		Logger:   xlog.WithComponent("session"),
	})

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewSourceChecker(cfg.Source))
	hm.RegisterChecker(health.NewDestinationChecker(cfg.Destination))
	hm.RegisterChecker(health.NewInputChecker(loop.InputState))
	hm.RegisterChecker(health.NewLastRunChecker(loop.LastFinished))

	apiServer := api.New(api.Options{
		Holder:  holder,
		Session: loop,
		History: store,
		Health:  hm,
		Version: version.Version,
		Tracing: cfg.Telemetry.Enabled,
	})

	manager, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.Listen), apiServer.Handler(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("manager init failed")
		_ = store.Close()
		return 1
	}
	manager.RegisterShutdownHook("history", func(context.Context) error {
		return store.Close()
	})
	manager.RegisterShutdownHook("telemetry", provider.Shutdown)
	manager.RegisterShutdownHook("fleet", func(context.Context) error {
		return publisher.Close()
	})
	if x11 != nil {
		manager.RegisterShutdownHook("input", func(context.Context) error {
			return x11.Close()
		})
	}

	app := daemon.NewApp(logger, manager, holder, loop, monitor, publisher)

	logger.Info().
		Str("event", "daemon.started").
		Str("version", version.Version).
		Str("trigger", cfg.Trigger).
		Str("source", cfg.Source).
		Str("destination", cfg.Destination).
		Bool("once", cfg.Once).
		Msg("lifeboat daemon running")

	if err := app.Run(ctx); err != nil {
		logger.Error().Err(err).Str("event", "daemon.failed").Msg("daemon exited with error")
		return 1
	}
	logger.Info().Str("event", "daemon.stopped").Msg("lifeboat daemon stopped")
	return 0
}

// resolveConfigPath picks the config file: explicit flag, then
// LIFEBOAT_CONFIG, then lifeboat.yaml next to the binary when present.
func resolveConfigPath(flagPath string) string {
	if p := strings.TrimSpace(flagPath); p != "" {
		return p
	}
	if p := strings.TrimSpace(os.Getenv("LIFEBOAT_CONFIG")); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	auto := filepath.Join(filepath.Dir(exe), "lifeboat.yaml")
	if _, err := os.Stat(auto); err == nil {
		return auto
	}
	return ""
}

// resolveHistoryPath places history.db: the configured dir, else the state
// dir ($XDG_STATE_HOME/lifeboat or ~/.local/state/lifeboat).
func resolveHistoryPath(cfg config.Config, configPath string) string {
	dir := cfg.History.Dir
	switch dir {
	case ":memory:":
		return ":memory:"
	case "":
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "lifeboat")
		} else if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "state", "lifeboat")
		} else if configPath != "" {
			dir = filepath.Dir(configPath)
		} else {
			dir = "."
		}
	}
	_ = os.MkdirAll(dir, 0o750)
	return filepath.Join(dir, "history.db")
}

// runHistoryCheck verifies the history database and reports findings, the
// maintenance path for a daemon that survived a crash or a full disk.
func runHistoryCheck(path string) int {
	if path == ":memory:" {
		fmt.Println("history is in-memory, nothing to check")
		return 0
	}
	findings, err := sqlite.VerifyIntegrity(path, "full")
	if err != nil {
		fmt.Fprintf(os.Stderr, "history check failed: %v\n", err)
		return 1
	}
	if len(findings) > 0 {
		fmt.Fprintf(os.Stderr, "history database %s is corrupt:\n", path)
		for _, f := range findings {
			fmt.Fprintf(os.Stderr, "  %s\n", f)
		}
		return 1
	}
	fmt.Printf("history database %s is intact\n", path)
	return 0
}
