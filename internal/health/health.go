// SPDX-License-Identifier: MIT

// Package health answers liveness and readiness probes for the daemon.
// Liveness only says the process is up; readiness folds in the state of
// the input source and the backup paths so a supervisor can tell a
// watching daemon from a wedged one.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/lifeboat-sh/lifeboat/internal/log"
)

// Status grades a component check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime_seconds"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one probeable component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers and serves the probe endpoints.
type Manager struct {
	version  string
	started  time.Time
	checkers []Checker
}

// NewManager creates a manager stamped with the build version.
func NewManager(version string) *Manager {
	return &Manager{
		version: version,
		started: time.Now(),
	}
}

// RegisterChecker adds a component check. Registration happens during boot,
// before the endpoints serve; the checker list is read-only afterwards.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

// runChecks evaluates every checker and folds the results into an overall
// status. Unhealthy beats degraded beats healthy.
func (m *Manager) runChecks(ctx context.Context) (Status, map[string]CheckResult) {
	if len(m.checkers) == 0 {
		return StatusHealthy, nil
	}

	overall := StatusHealthy
	checks := make(map[string]CheckResult, len(m.checkers))
	for _, c := range m.checkers {
		result := c.Check(ctx)
		checks[c.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall != StatusUnhealthy {
				overall = StatusDegraded
			}
		}
	}
	return overall, checks
}

// Health is the liveness view. The process answering at all is the signal;
// component checks ride along only when verbose is set.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.started).Seconds()),
		Timestamp: time.Now(),
	}

	if verbose {
		resp.Status, resp.Checks = m.runChecks(ctx)
	}
	return resp
}

// Ready is the readiness view. Only an unhealthy component flips Ready to
// false; degraded still serves.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	status, checks := m.runChecks(ctx)
	return ReadinessResponse{
		Ready:     status != StatusUnhealthy,
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// ServeHealth handles the liveness endpoint. Always 200; a dead process
// cannot answer, and that is the whole signal.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles the readiness endpoint, 503 when any component is
// unhealthy.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// PathChecker watches one of the configured backup paths.
type PathChecker struct {
	name    string
	path    string
	missing Status
}

// NewSourceChecker reports on the backup source. A missing source is a
// misconfiguration, so it grades unhealthy.
func NewSourceChecker(path string) *PathChecker {
	return &PathChecker{name: "source", path: path, missing: StatusUnhealthy}
}

// NewDestinationChecker reports on the rescue target. Removable media may
// be absent between runs, so a missing destination only degrades.
func NewDestinationChecker(path string) *PathChecker {
	return &PathChecker{name: "destination", path: path, missing: StatusDegraded}
}

func (c *PathChecker) Name() string {
	return c.name
}

func (c *PathChecker) Check(_ context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  "not configured",
		}
	}

	info, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Status:  c.missing,
				Error:   "path does not exist",
				Message: c.path,
			}
		}
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  err.Error(),
		}
	}

	if !info.IsDir() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "path is a single file",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "path exists",
	}
}

// InputChecker reflects whether the input source still delivers events.
// A dead X connection means no trigger can ever fire, which is the one
// condition a supervisor should restart on.
type InputChecker struct {
	state func() (bool, string)
}

// NewInputChecker wires the checker to the session's view of the input
// source.
func NewInputChecker(state func() (alive bool, detail string)) *InputChecker {
	return &InputChecker{state: state}
}

func (c *InputChecker) Name() string {
	return "input"
}

func (c *InputChecker) Check(_ context.Context) CheckResult {
	alive, detail := c.state()
	if !alive {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   "input source down",
			Message: detail,
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: detail,
	}
}

// LastRunChecker reports the outcome of the most recent backup run. Runs
// only happen on activation, so a quiet daemon with no runs yet is healthy.
type LastRunChecker struct {
	lastRun func() (time.Time, string)
}

// NewLastRunChecker wires the checker to the history store.
func NewLastRunChecker(lastRun func() (finished time.Time, failure string)) *LastRunChecker {
	return &LastRunChecker{lastRun: lastRun}
}

func (c *LastRunChecker) Name() string {
	return "last_run"
}

func (c *LastRunChecker) Check(_ context.Context) CheckResult {
	finished, failure := c.lastRun()

	if finished.IsZero() {
		return CheckResult{
			Status:  StatusHealthy,
			Message: "no runs yet",
		}
	}

	if failure != "" {
		return CheckResult{
			Status:  StatusDegraded,
			Error:   failure,
			Message: "last run failed",
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "last run succeeded",
	}
}
