// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"errors"
	"time"

	"github.com/lifeboat-sh/lifeboat/internal/backup"
	"github.com/lifeboat-sh/lifeboat/internal/config"
	"github.com/lifeboat-sh/lifeboat/internal/fleet"
	"github.com/lifeboat-sh/lifeboat/internal/gesture"
	"github.com/lifeboat-sh/lifeboat/internal/history"
	"github.com/lifeboat-sh/lifeboat/internal/input"
	"github.com/lifeboat-sh/lifeboat/internal/metrics"
	"github.com/lifeboat-sh/lifeboat/internal/notify"
	"github.com/lifeboat-sh/lifeboat/internal/report"
)

// tickPeriod drives chord promotion, arm timeouts and cooldown expiry.
const tickPeriod = 250 * time.Millisecond

// watchdog backoff for a failing input source.
const (
	retryStep = 500 * time.Millisecond
	retryCap  = 30 * time.Second
	// A stream that survived this long resets the backoff.
	retryHealthy = time.Minute
)

type runOutcome struct {
	id      string
	trigger string
	res     backup.Result
	err     error
}

// Run drives the session until ctx is done or, in one-shot mode, until the
// first run finishes. Events flow source -> recognizer -> state machine; the
// API feeds the same machine through the command channel.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.stopped)

	cfg := l.holder.Get()

	rec := l.newRecognizer(cfg.Trigger)
	events := make(chan input.Event, 256)
	if l.source != nil {
		go l.streamWithRetry(ctx, events)
	} else {
		close(events)
		l.logger.Info().Msg("no input source, gestures disabled, API trigger only")
	}

	reloads := make(chan config.Config, 1)
	l.holder.RegisterListener(reloads)

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	runDone := make(chan runOutcome, 1)
	var cooldownUntil time.Time
	var cancelRun context.CancelFunc
	defer func() {
		if cancelRun != nil {
			cancelRun()
		}
	}()

	l.publishState(ctx)
	l.logger.Info().
		Str("event", "session.watching").
		Str("trigger", cfg.Trigger).
		Msg("session watching for activation gesture")

	for {
		select {
		case <-ctx.Done():
			if l.State() == StateRunning {
				// The engine sees the same ctx and stops between files;
				// wait for its result so the history row gets closed.
				out := <-runDone
				l.finishRun(ctx, out)
			}
			return nil

		case newCfg := <-reloads:
			if newCfg.Trigger != cfg.Trigger && l.State() == StateWatching {
				l.logger.Info().
					Str("event", "session.trigger_changed").
					Str("trigger", newCfg.Trigger).
					Msg("switching recognizer")
				rec = l.newRecognizer(newCfg.Trigger)
			}
			cfg = newCfg

		case cmd := <-l.cmds:
			switch cmd.kind {
			case cmdTrigger:
				if l.State() == StateRunning {
					cmd.reply <- ErrBusy
					continue
				}
				cmd.reply <- nil
				rec.Reset()
				cancelRun = l.startRun(ctx, cfg, cmd.trigger, runDone)
			case cmdCancel:
				if l.State() != StateArmed {
					cmd.reply <- ErrNotArmed
					continue
				}
				cmd.reply <- nil
				l.disarm(ctx, rec, true)
			}

		case out := <-runDone:
			if cancelRun != nil {
				cancelRun()
				cancelRun = nil
			}
			l.finishRun(ctx, out)
			if cfg.Once {
				l.logger.Info().Str("event", "session.once_done").Msg("one-shot run finished, stopping")
				return nil
			}
			cooldownUntil = time.Now().Add(cfg.Cooldown)
			l.setState(StateCooldown)
			metrics.SetSessionState(int(StateCooldown))
			l.publishState(ctx)

		case now := <-ticker.C:
			switch l.State() {
			case StateCooldown:
				if now.After(cooldownUntil) {
					l.setState(StateWatching)
					metrics.SetSessionState(int(StateWatching))
					rec.Reset()
					l.publishState(ctx)
					l.logger.Debug().Str("event", "session.watching").Msg("cooldown over")
				}
			case StateArmed:
				if cfg.ArmTimeout > 0 && now.Sub(l.ArmedSince()) > cfg.ArmTimeout {
					l.logger.Info().
						Str("event", "session.arm_timeout").
						Dur("timeout", cfg.ArmTimeout).
						Msg("activation expired, disarming")
					l.disarm(ctx, rec, false)
					continue
				}
				cancelRun = l.decide(ctx, cfg, rec, rec.Tick(now), runDone, cancelRun)
			case StateWatching:
				cancelRun = l.decide(ctx, cfg, rec, rec.Tick(now), runDone, cancelRun)
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch l.State() {
			case StateRunning, StateCooldown:
				// Input keeps draining so the device buffer never backs
				// up, but decisions are ignored.
			default:
				cancelRun = l.decide(ctx, cfg, rec, rec.Feed(ev), runDone, cancelRun)
			}
		}
	}
}

// decide applies a recognizer verdict to the state machine.
func (l *Loop) decide(ctx context.Context, cfg config.Config, rec gesture.Recognizer, d gesture.Decision, runDone chan runOutcome, cancelRun context.CancelFunc) context.CancelFunc {
	switch d {
	case gesture.DecisionNone:
		return cancelRun

	case gesture.DecisionArmed:
		metrics.RecordGestureDecision("armed")
		if !l.limiter.AllowArm(cfg.Trigger) {
			l.logger.Warn().
				Str("event", "session.arm_suppressed").
				Str("trigger", cfg.Trigger).
				Msg("arm suppressed by storm guard")
			rec.Reset()
			return cancelRun
		}
		l.setState(StateArmed)
		l.armedSince.Store(time.Now().UnixMilli())
		metrics.SetSessionState(int(StateArmed))
		metrics.IncSessionArm(cfg.Trigger)
		l.logger.Info().
			Str("event", "session.armed").
			Str("trigger", cfg.Trigger).
			Msg("activation gesture recognized, waiting for confirmation")
		kind := notify.ArmedPointer
		if cfg.Trigger == config.TriggerChord {
			kind = notify.ArmedChord
		}
		l.notifier.Notify(ctx, notify.Notification{Kind: kind})
		l.publishState(ctx)
		return cancelRun

	case gesture.DecisionConfirmed:
		metrics.RecordGestureDecision("confirm")
		l.armedSince.Store(0)
		rec.Reset()
		return l.startRun(ctx, cfg, cfg.Trigger, runDone)

	case gesture.DecisionCanceled:
		metrics.RecordGestureDecision("cancel")
		l.disarm(ctx, rec, true)
		return cancelRun
	}
	return cancelRun
}

// disarm drops a pending activation. Loud disarms (user canceled) notify and
// beep; silent ones (timeout) only log.
func (l *Loop) disarm(ctx context.Context, rec gesture.Recognizer, loud bool) {
	l.setState(StateWatching)
	l.armedSince.Store(0)
	metrics.SetSessionState(int(StateWatching))
	rec.Reset()
	l.logger.Info().Str("event", "session.canceled").Msg("activation canceled")
	if loud {
		l.notifier.Notify(ctx, notify.Notification{Kind: notify.Canceled})
	}
	l.publishState(ctx)
}

// startRun launches the engine in its own goroutine and moves the session to
// Running. The returned cancel stops the run early; the loop keeps draining
// input while the copy proceeds.
func (l *Loop) startRun(ctx context.Context, cfg config.Config, trigger string, runDone chan runOutcome) context.CancelFunc {
	l.setState(StateRunning)
	l.armedSince.Store(0)
	metrics.SetSessionState(int(StateRunning))
	l.logger.Info().
		Str("event", "session.run_started").
		Str("trigger", trigger).
		Str("source", cfg.Source).
		Str("destination", cfg.Destination).
		Msg("backup confirmed")
	l.notifier.Notify(ctx, notify.Notification{Kind: notify.Started})
	l.monitor.Mark("backup start, trigger=" + trigger)
	l.publishState(ctx)

	run := history.NewRun(trigger, time.Now())
	if l.history != nil {
		if err := l.history.Begin(ctx, run); err != nil {
			l.logger.Warn().Err(err).Str("run_id", run.ID).Msg("history begin failed")
		}
	}

	req := backup.Request{
		Source:      cfg.Source,
		Destination: cfg.Destination,
		Trigger:     trigger,
		Filter:      backup.NewFilter(cfg.Extensions),
		MaxOpen:     cfg.MaxOpenFiles,
	}
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		res, err := l.engine.Run(runCtx, req)
		runDone <- runOutcome{id: run.ID, trigger: trigger, res: res, err: err}
	}()
	return cancel
}

// finishRun records the result everywhere it belongs: history, report file,
// metrics, notifications, fleet and the session's own last-run view.
func (l *Loop) finishRun(ctx context.Context, out runOutcome) {
	now := time.Now()
	outcome := history.OutcomeSuccess
	errMsg := ""
	switch {
	case out.err == nil:
		outcome = history.OutcomeSuccess
	case errors.Is(out.err, context.Canceled) || errors.Is(out.err, context.DeadlineExceeded):
		outcome = history.OutcomeCanceled
		errMsg = out.err.Error()
	default:
		outcome = history.OutcomeFailure
		errMsg = out.err.Error()
	}

	metrics.RecordBackupRun(outcome, out.res.Duration.Seconds())
	metrics.SetBackupProgress(0)
	l.monitor.Mark("backup " + outcome)

	if l.history != nil {
		// Shutdown must still close the row; detach from the canceled ctx.
		histCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := l.history.Finish(histCtx, out.id, outcome, out.res, errMsg); err != nil {
			l.logger.Warn().Err(err).Str("run_id", out.id).Msg("history finish failed")
		}
		cancel()
	}

	switch outcome {
	case history.OutcomeSuccess:
		cfg := l.holder.Get()
		if path, err := report.Write(ctx, cfg.Destination, out.res, now); err != nil {
			l.logger.Warn().Err(err).Msg("report write failed")
		} else {
			l.logger.Info().
				Str("event", "session.report_written").
				Str("path", path).
				Msg("backup report written")
		}
		l.notifier.Notify(ctx, notify.Notification{Kind: notify.Done})
		l.logger.Info().
			Str("event", "session.run_done").
			Str("run_id", out.id).
			Int("copied", out.res.Copied).
			Int("failed", out.res.Failed).
			Dur("duration", out.res.Duration).
			Msg("backup finished")
	case history.OutcomeCanceled:
		l.logger.Warn().
			Str("event", "session.run_canceled").
			Str("run_id", out.id).
			Msg("backup canceled mid-run")
	default:
		l.notifier.Notify(ctx, notify.Notification{
			Kind:    notify.GenericError,
			Message: "Backup failed: " + errMsg,
		})
		l.logger.Error().
			Str("event", "session.run_failed").
			Str("run_id", out.id).
			Str("error", errMsg).
			Msg("backup failed")
	}

	l.setLastRun(lastRun{finished: now, outcome: outcome, errMsg: errMsg, result: out.res})
	l.publishLastRun(ctx, outcome, now, out.res)
}

// streamWithRetry keeps the input source alive. A failed stream is retried
// with quadratic backoff; a stream that returns nil ended on its own
// (replay sources) and is not restarted.
func (l *Loop) streamWithRetry(ctx context.Context, events chan<- input.Event) {
	defer close(events)

	emit := func(ev input.Event) error {
		select {
		case events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	attempt := 0
	notified := false
	for {
		started := time.Now()
		l.setInputState(true, "")
		err := l.source.Stream(ctx, emit)
		if err == nil {
			l.setInputState(false, "input source closed")
			return
		}
		if ctx.Err() != nil {
			l.setInputState(false, "shutting down")
			return
		}

		if time.Since(started) > retryHealthy {
			attempt = 0
			notified = false
		}
		attempt++
		backoff := time.Duration(attempt*attempt) * retryStep
		if backoff > retryCap {
			backoff = retryCap
		}
		l.setInputState(false, err.Error())
		l.logger.Error().
			Err(err).
			Str("event", "input.stream_failed").
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("input source failed, retrying")
		if !notified && l.limiter.AllowNotify("input_failed") {
			l.notifier.Notify(ctx, notify.Notification{
				Kind:    notify.GenericError,
				Message: "Input device unavailable, gestures suspended",
			})
			notified = true
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

// newRecognizer builds the recognizer for the configured trigger. The
// perimeter recognizer needs the screen size; without one (headless, stub
// input) it gets a zero geometry and simply never completes.
func (l *Loop) newRecognizer(trigger string) gesture.Recognizer {
	if trigger == config.TriggerChord {
		return gesture.NewChord()
	}
	var geom input.Geometry
	if gp, ok := l.source.(input.GeometryProvider); ok {
		geom = gp.Geometry()
	}
	return gesture.NewPerimeter(geom)
}

func (l *Loop) publishState(ctx context.Context) {
	st := fleet.Status{State: l.State().String()}
	l.mu.Lock()
	if l.last != nil {
		st.LastRun = &fleet.RunInfo{
			Outcome:    l.last.outcome,
			FinishedAt: l.last.finished,
			Files:      l.last.result.Files,
			Bytes:      l.last.result.Bytes,
		}
	}
	l.mu.Unlock()
	l.fleet.Publish(ctx, st)
}

func (l *Loop) publishLastRun(ctx context.Context, outcome string, finished time.Time, res backup.Result) {
	l.fleet.Publish(ctx, fleet.Status{
		State: l.State().String(),
		LastRun: &fleet.RunInfo{
			Outcome:    outcome,
			FinishedAt: finished,
			Files:      res.Files,
			Bytes:      res.Bytes,
		},
	})
}
