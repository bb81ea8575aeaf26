// SPDX-License-Identifier: MIT

// Package session is the daemon's orchestrator. It owns the gesture
// recognizer, drains the input source, and turns confirmed activations into
// backup runs. One Loop exists per daemon; the API reaches the same state
// machine through Trigger and CancelArm.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifeboat-sh/lifeboat/internal/backup"
	"github.com/lifeboat-sh/lifeboat/internal/config"
	"github.com/lifeboat-sh/lifeboat/internal/fleet"
	"github.com/lifeboat-sh/lifeboat/internal/history"
	"github.com/lifeboat-sh/lifeboat/internal/input"
	"github.com/lifeboat-sh/lifeboat/internal/notify"
	"github.com/lifeboat-sh/lifeboat/internal/ratelimit"
	"github.com/lifeboat-sh/lifeboat/internal/sysmon"
)

// State is where the session currently sits. Values are stable: the metrics
// gauge and the fleet document both expose them.
type State int32

const (
	StateWatching State = iota
	StateArmed
	StateRunning
	StateCooldown
)

func (s State) String() string {
	switch s {
	case StateWatching:
		return "watching"
	case StateArmed:
		return "armed"
	case StateRunning:
		return "running"
	case StateCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Trigger sources recorded in history rows and metrics labels.
const (
	TriggerPointer = "pointer"
	TriggerChord   = "chord"
	TriggerAPI     = "api"
	// TriggerOnce marks runs started without a gesture in one-shot mode.
	TriggerOnce = "once"
)

var (
	// ErrBusy rejects triggers while a run is in flight.
	ErrBusy = errors.New("session: backup already running")
	// ErrNotArmed rejects a cancel when nothing is armed.
	ErrNotArmed = errors.New("session: no pending activation")
	// ErrStopped rejects commands once the loop has exited.
	ErrStopped = errors.New("session: loop stopped")
)

// Options wires the loop's collaborators. Everything except Holder, Engine
// and Notifier may be nil; nil optional pieces become no-ops.
type Options struct {
	Holder   *config.Holder
	Source   input.Source
	Engine   *backup.Engine
	History  *history.Store
	Notifier *notify.Notifier
	Fleet    fleet.Publisher
	Monitor  sysmon.Monitor
	Limiter  *ratelimit.Limiter
	Logger   zerolog.Logger
}

// lastRun is the session's own view of the most recent finished run, kept
// for the readiness probe so it works even with an in-memory history.
type lastRun struct {
	finished time.Time
	outcome  string
	errMsg   string
	result   backup.Result
}

type cmdKind uint8

const (
	cmdTrigger cmdKind = iota
	cmdCancel
)

type command struct {
	kind    cmdKind
	trigger string
	reply   chan error
}

// Loop is the session state machine. Construct with New, drive with Run.
// State, ArmedSince, InputState and LastFinished are safe from any
// goroutine; everything else belongs to the loop.
type Loop struct {
	holder   *config.Holder
	source   input.Source
	engine   *backup.Engine
	history  *history.Store
	notifier *notify.Notifier
	fleet    fleet.Publisher
	monitor  sysmon.Monitor
	limiter  *ratelimit.Limiter
	logger   zerolog.Logger

	state      atomic.Int32
	armedSince atomic.Int64 // unix ms, 0 while not armed
	inputAlive atomic.Bool

	mu       sync.Mutex
	inputErr string
	last     *lastRun
	cmds     chan command
	stopped  chan struct{}
}

// New builds a Loop. Run must be called before the loop does anything.
func New(opts Options) *Loop {
	fl := opts.Fleet
	if fl == nil {
		fl = fleet.Nop{}
	}
	mon := opts.Monitor
	if mon == nil {
		mon = sysmon.Nop{}
	}
	lim := opts.Limiter
	if lim == nil {
		lim = ratelimit.New(ratelimit.DefaultConfig())
	}
	l := &Loop{
		holder:   opts.Holder,
		source:   opts.Source,
		engine:   opts.Engine,
		history:  opts.History,
		notifier: opts.Notifier,
		fleet:    fl,
		monitor:  mon,
		limiter:  lim,
		logger:   opts.Logger,
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
	}
	l.setState(StateWatching)
	return l
}

// State reports the current session state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// ArmedSince reports when the pending activation armed, zero when none is
// pending.
func (l *Loop) ArmedSince() time.Time {
	ms := l.armedSince.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Progress reports the running backup's percentage, 0 when idle.
func (l *Loop) Progress() int {
	if l.engine == nil {
		return 0
	}
	return l.engine.Progress()
}

// InputState reports whether the input source is delivering events and, when
// it is not, the last stream error.
func (l *Loop) InputState() (alive bool, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inputAlive.Load(), l.inputErr
}

// LastFinished reports when the most recent run finished and, for failed
// runs, its error. Both are zero before the first run.
func (l *Loop) LastFinished() (finished time.Time, failure string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return time.Time{}, ""
	}
	if l.last.outcome == history.OutcomeFailure {
		return l.last.finished, l.last.errMsg
	}
	return l.last.finished, ""
}

// LastResult returns the most recent finished run's outcome and result, or
// false before the first run.
func (l *Loop) LastResult() (outcome string, res backup.Result, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return "", backup.Result{}, false
	}
	return l.last.outcome, l.last.result, true
}

// Trigger starts a backup without a gesture, the API's path into the state
// machine. It returns ErrBusy while a run is in flight and waits for the
// loop to accept the command, not for the run to finish.
func (l *Loop) Trigger(ctx context.Context, trigger string) error {
	if trigger == "" {
		trigger = TriggerAPI
	}
	return l.send(ctx, command{kind: cmdTrigger, trigger: trigger})
}

// CancelArm disarms a pending activation. It returns ErrNotArmed when the
// session is not armed.
func (l *Loop) CancelArm(ctx context.Context) error {
	return l.send(ctx, command{kind: cmdCancel})
}

func (l *Loop) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case l.cmds <- cmd:
	case <-l.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loop) setInputState(alive bool, detail string) {
	l.mu.Lock()
	l.inputAlive.Store(alive)
	l.inputErr = detail
	l.mu.Unlock()
}

func (l *Loop) setLastRun(lr lastRun) {
	l.mu.Lock()
	l.last = &lr
	l.mu.Unlock()
}
