// SPDX-License-Identifier: MIT

// Package daemon owns the process lifecycle: the supervised goroutine set,
// the API listener, signal-driven config reloads and orderly shutdown.
package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lifeboat-sh/lifeboat/internal/config"
	"github.com/lifeboat-sh/lifeboat/internal/fleet"
	"github.com/lifeboat-sh/lifeboat/internal/session"
	"github.com/lifeboat-sh/lifeboat/internal/sysmon"
)

// App owns the long-lived runtime: the session loop, config watching, the
// CPU sampler and the fleet heartbeat. Server management is delegated to
// Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	holder       *config.Holder
	session      *session.Loop
	monitor      sysmon.Monitor
	fleet        fleet.Publisher
	reloadSignal os.Signal
}

// NewApp creates the app orchestrator. Monitor and fleet may be nil.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder, sess *session.Loop, monitor sysmon.Monitor, fl fleet.Publisher) *App {
	if monitor == nil {
		monitor = sysmon.Nop{}
	}
	if fl == nil {
		fl = fleet.Nop{}
	}
	return &App{
		logger:       logger,
		manager:      manager,
		holder:       holder,
		session:      sess,
		monitor:      monitor,
		fleet:        fl,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts every owned subsystem and blocks until ctx is canceled, a
// subsystem fails, or the session loop ends (one-shot mode). The first
// failure tears the whole group down.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.session == nil {
		return ErrMissingSession
	}

	// The session ending on its own (one-shot mode) must stop the group
	// even though it is not an error.
	ctx, stopAll := context.WithCancel(ctx)
	defer stopAll()

	g, ctx := errgroup.WithContext(ctx)

	// Config watcher is best effort: a daemon that cannot watch its file
	// still works, it just needs SIGHUP for reloads.
	if a.holder != nil {
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str("event", "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	// SIGHUP trigger for manual reload.
	if a.holder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str("event", "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.holder.Reload(context.Background()); err != nil {
						a.logger.Warn().
							Err(err).
							Str("event", "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	// Session loop. Its clean return ends the daemon.
	g.Go(func() error {
		err := a.session.Run(ctx)
		stopAll()
		return err
	})

	// CPU sampler.
	g.Go(func() error {
		return a.monitor.Run(ctx)
	})

	// Fleet heartbeat.
	g.Go(func() error {
		return a.fleet.Run(ctx)
	})

	// Server lifecycle.
	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}
