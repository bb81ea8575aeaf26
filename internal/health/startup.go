// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/lifeboat-sh/lifeboat/internal/config"
	"github.com/lifeboat-sh/lifeboat/internal/log"
	"github.com/rs/zerolog"
)

// PerformStartupChecks validates paths, the listen address and the feedback
// tooling before the daemon starts watching input. Hard misconfigurations
// are returned as errors; conditions the daemon can live with (a rescue
// disk that is not plugged in yet, a missing audio player) are logged and
// tolerated.
func PerformStartupChecks(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if err := checkListenAddr(logger, cfg.Listen); err != nil {
		return fmt.Errorf("listen address check failed: %w", err)
	}

	if err := checkBackupPaths(logger, cfg); err != nil {
		return fmt.Errorf("backup path check failed: %w", err)
	}

	if err := checkHistoryDir(logger, cfg.History.Dir); err != nil {
		return fmt.Errorf("history directory check failed: %w", err)
	}

	checkFeedbackTools(logger, cfg.Notify)
	checkDisplay(logger)

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

func checkListenAddr(logger zerolog.Logger, addr string) error {
	if addr == "" {
		logger.Info().Msg("control API disabled; no listen address configured")
		return nil
	}

	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid listen port %q in %q", port, addr)
	}

	logger.Info().Str("addr", addr).Msg("✓ Listen address is valid")
	return nil
}

// checkBackupPaths inspects source and destination. Both may legitimately
// appear after boot (network mounts, removable media), so absence only
// warns; a destination that exists but cannot be written to is a hard
// error because every run would fail.
func checkBackupPaths(logger zerolog.Logger, cfg config.Config) error {
	if _, err := os.Stat(cfg.Source); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("source %s: %w", cfg.Source, err)
		}
		logger.Warn().Str("path", cfg.Source).Msg("source does not exist yet; runs will fail until it appears")
	} else {
		logger.Info().Str("path", cfg.Source).Msg("✓ Source path exists")
	}

	info, err := os.Stat(cfg.Destination)
	switch {
	case err != nil && os.IsNotExist(err):
		logger.Warn().Str("path", cfg.Destination).Msg("destination does not exist yet; mount the rescue target before triggering")
		return nil
	case err != nil:
		return fmt.Errorf("destination %s: %w", cfg.Destination, err)
	case !info.IsDir():
		return fmt.Errorf("destination is not a directory: %s", cfg.Destination)
	}

	testFile := filepath.Join(cfg.Destination, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("destination is not writable: %s (error: %v)", cfg.Destination, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", cfg.Destination).Msg("✓ Destination is writable")
	return nil
}

func checkHistoryDir(logger zerolog.Logger, dir string) error {
	if dir == "" || dir == ":memory:" {
		logger.Info().Msg("history store needs no directory; nothing to check")
		return nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", dir, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str("path", dir).Msg("✓ History directory is writable")
	return nil
}

// checkFeedbackTools looks up the notification binaries. The notifier falls
// back to no-ops on its own; the lookup here just surfaces the gap at boot
// instead of at the first popup.
func checkFeedbackTools(logger zerolog.Logger, cfg config.NotifyConfig) {
	if cfg.Desktop {
		if _, err := exec.LookPath("notify-send"); err != nil {
			logger.Warn().Msg("notify-send not found; desktop notifications will be dropped")
		} else {
			logger.Info().Msg("✓ notify-send available")
		}
	}

	if cfg.Sound {
		player := ""
		for _, bin := range []string{"paplay", "aplay"} {
			if _, err := exec.LookPath(bin); err == nil {
				player = bin
				break
			}
		}
		if player == "" {
			logger.Warn().Msg("no audio player found; beeps fall back to the terminal bell")
		} else {
			logger.Info().Str("player", player).Msg("✓ Audio player available")
		}

		for _, name := range []string{"positive-beep.wav", "negative-beep.wav"} {
			if err := checkFileReadable(filepath.Join(cfg.SoundsDir, name)); err != nil {
				logger.Warn().Str("file", name).Str("dir", cfg.SoundsDir).Msg("beep sample not readable")
			}
		}
	}
}

// checkDisplay warns when no X display is reachable. Headless boots (setup,
// smoke tests) are legitimate, so this never fails the start.
func checkDisplay(logger zerolog.Logger) {
	if os.Getenv("DISPLAY") == "" {
		logger.Warn().Msg("DISPLAY is not set; X11 input capture will not start")
	}
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config; verifying readability is expected
	if err != nil {
		return err
	}
	return f.Close()
}
