// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/lifeboat-sh/lifeboat/internal/log"
	"github.com/lifeboat-sh/lifeboat/internal/metrics"
)

// debounceDuration collapses the write bursts editors produce when saving
// (temp file + rename shows up as several events).
const debounceDuration = 500 * time.Millisecond

// Holder holds configuration with atomic reloading capability. It provides
// thread-safe access and supports hot reloading from file changes, SIGHUP or
// manual trigger.
type Holder struct {
	mu         sync.RWMutex
	current    Config
	loader     *Loader
	configPath string
	watcher    *fsnotify.Watcher
	logger     zerolog.Logger

	reloadMu        sync.RWMutex
	reloadListeners []chan<- Config
}

// NewHolder creates a configuration holder with the initial config.
func NewHolder(initial Config, loader *Loader) *Holder {
	return &Holder{
		current:    initial,
		loader:     loader,
		configPath: loader.Path(),
		logger:     log.WithComponent("config"),
	}
}

// Get returns the current configuration (thread-safe read).
func (h *Holder) Get() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload reloads configuration from file and validates it. If the new
// configuration is invalid the old one stays active and the error is
// returned: either the full config applies or nothing changes.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	newCfg, err := h.loader.Load()
	if err != nil {
		metrics.IncConfigReload("failure")
		if FieldFromError(err) != "" {
			metrics.IncConfigValidationError()
		}
		h.logger.Error().
			Err(err).
			Str("event", "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("load config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.current
	h.current = newCfg
	h.mu.Unlock()

	h.notifyListeners(newCfg)
	h.logChanges(oldCfg, newCfg)

	metrics.IncConfigReload("success")
	h.logger.Info().
		Str("event", "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// StartWatcher starts watching the config file for changes. With an empty
// config path this is a no-op (ENV-only configuration).
func (h *Holder) StartWatcher(ctx context.Context) error {
	if h.configPath == "" {
		h.logger.Info().
			Str("event", "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch the directory, not the file: editors save by writing a temp
	// file and renaming it over the path, which would leave a file-level
	// watch on a dead inode.
	if err := watcher.Add(filepath.Dir(h.configPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	h.logger.Info().
		Str("event", "config.watcher_started").
		Str("path", h.configPath).
		Msg("watching config file for changes")

	go h.watchLoop(ctx)
	return nil
}

func (h *Holder) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			if h.watcher != nil {
				_ = h.watcher.Close()
			}
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.configPath) {
				continue
			}
			// Write covers in-place saves, Create and Rename cover the
			// temp-file-plus-rename saves of vim and sed -i.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				h.logger.Debug().
					Str("event", "config.file_changed").
					Str("op", event.Op.String()).
					Msg("config file changed")

				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					if err := h.Reload(ctx); err != nil {
						h.logger.Error().
							Err(err).
							Str("event", "config.auto_reload_failed").
							Msg("automatic config reload failed")
					}
				})
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().
				Err(err).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running).
func (h *Holder) Stop() {
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
}

// RegisterListener registers a channel receiving the new config after every
// successful reload. The caller owns the channel.
func (h *Holder) RegisterListener(ch chan<- Config) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()
	h.reloadListeners = append(h.reloadListeners, ch)
}

// notifyListeners sends the new config to all listeners (non-blocking).
func (h *Holder) notifyListeners(newCfg Config) {
	h.reloadMu.RLock()
	defer h.reloadMu.RUnlock()

	for _, ch := range h.reloadListeners {
		select {
		case ch <- newCfg:
		default:
			h.logger.Warn().
				Str("event", "config.listener_skip").
				Msg("skipped notifying listener (channel full)")
		}
	}
}

// logChanges logs the differences that affect backup behavior.
func (h *Holder) logChanges(old, newCfg Config) {
	if old.Source != newCfg.Source {
		h.logger.Info().
			Str("old", old.Source).
			Str("new", newCfg.Source).
			Msg("config changed: source")
	}
	if old.Destination != newCfg.Destination {
		h.logger.Info().
			Str("old", old.Destination).
			Str("new", newCfg.Destination).
			Msg("config changed: destination")
	}
	if old.Trigger != newCfg.Trigger {
		h.logger.Info().
			Str("old", old.Trigger).
			Str("new", newCfg.Trigger).
			Msg("config changed: trigger")
	}
	if len(old.Extensions) != len(newCfg.Extensions) {
		h.logger.Info().
			Strs("old", old.Extensions).
			Strs("new", newCfg.Extensions).
			Msg("config changed: extensions")
	}
	if old.Log.Level != newCfg.Log.Level {
		h.logger.Info().
			Str("old", old.Log.Level).
			Str("new", newCfg.Log.Level).
			Msg("config changed: log.level")
	}
}

// WaitValid blocks until the config file loads and validates, watching it
// for corrections. It is the boot path for a daemon started with a broken
// file: onError is invoked for the initial failure and for every failed
// retry (the notifier surfaces these to the user), and the daemon simply
// waits instead of exiting.
func WaitValid(ctx context.Context, loader *Loader, onError func(error)) (Config, error) {
	cfg, err := loader.Load()
	if err == nil {
		return cfg, nil
	}
	if onError != nil {
		onError(err)
	}

	logger := log.WithComponent("config")
	logger.Warn().
		Err(err).
		Str("event", "config.wait_valid").
		Str("path", loader.Path()).
		Msg("configuration invalid, watching file until it loads")

	watcher, werr := fsnotify.NewWatcher()
	if werr != nil {
		return Config{}, fmt.Errorf("create watcher: %w", werr)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so a temp-write-plus-rename save (and the file
	// not existing yet) both surface as events on the config path.
	target := loader.Path()
	if werr := watcher.Add(filepath.Dir(target)); werr != nil {
		return Config{}, fmt.Errorf("watch config dir: %w", werr)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()
	retry := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return Config{}, fmt.Errorf("config watcher closed")
			}
			if event.Name != "" && filepath.Clean(event.Name) != filepath.Clean(target) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					select {
					case retry <- struct{}{}:
					default:
					}
				})
			}

		case <-retry:
			cfg, err = loader.Load()
			if err == nil {
				logger.Info().
					Str("event", "config.wait_valid_recovered").
					Msg("configuration fixed")
				return cfg, nil
			}
			if onError != nil {
				onError(err)
			}
			logger.Warn().
				Err(err).
				Str("event", "config.wait_valid_retry").
				Msg("configuration still invalid")

		case werr, ok := <-watcher.Errors:
			if !ok {
				return Config{}, fmt.Errorf("config watcher closed")
			}
			logger.Error().
				Err(werr).
				Str("event", "config.watcher_error").
				Msg("config watcher error")
		}
	}
}
