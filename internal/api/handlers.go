// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lifeboat-sh/lifeboat/internal/session"
)

// statusResponse is the /api/v1/status payload.
type statusResponse struct {
	State      string        `json:"state"`
	Version    string        `json:"version"`
	ArmedSince *time.Time    `json:"armed_since,omitempty"`
	Running    *runningInfo  `json:"running,omitempty"`
	LastRun    *lastRunInfo  `json:"last_run,omitempty"`
	Config     configSummary `json:"config"`
}

type runningInfo struct {
	Percent int `json:"percent"`
}

type lastRunInfo struct {
	Outcome    string    `json:"outcome"`
	FinishedAt time.Time `json:"finished_at"`
	Files      int       `json:"files"`
	Copied     int       `json:"copied"`
	Failed     int       `json:"failed"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
}

type configSummary struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Trigger     string `json:"trigger"`
}

// runRow is one history entry in the /api/v1/runs payload.
type runRow struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Outcome    string     `json:"outcome"`
	Files      int        `json:"files"`
	Copied     int        `json:"copied"`
	Failed     int        `json:"failed"`
	Bytes      int64      `json:"bytes"`
	DurationMS int64      `json:"duration_ms"`
	Error      string     `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.holder.Get()

	resp := statusResponse{
		State:   s.session.State().String(),
		Version: s.version,
		Config: configSummary{
			Source:      cfg.Source,
			Destination: cfg.Destination,
			Trigger:     cfg.Trigger,
		},
	}

	if since := s.session.ArmedSince(); !since.IsZero() {
		resp.ArmedSince = &since
	}
	if s.session.State() == session.StateRunning {
		resp.Running = &runningInfo{Percent: s.session.Progress()}
	}
	if outcome, res, ok := s.session.LastResult(); ok {
		finished, _ := s.session.LastFinished()
		resp.LastRun = &lastRunInfo{
			Outcome:    outcome,
			FinishedAt: finished,
			Files:      res.Files,
			Copied:     res.Copied,
			Failed:     res.Failed,
			Bytes:      res.Bytes,
			DurationMS: res.Duration.Milliseconds(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > 100 {
		limit = 100
	}

	rows := []runRow{}
	if s.history != nil {
		runs, err := s.history.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error().Err(err).Msg("history query failed")
			writeError(w, r, http.StatusInternalServerError, "history unavailable")
			return
		}
		for _, run := range runs {
			row := runRow{
				ID:         run.ID,
				Trigger:    run.Trigger,
				StartedAt:  run.StartedAt,
				Outcome:    run.Outcome,
				Files:      run.Files,
				Copied:     run.Copied,
				Failed:     run.Failed,
				Bytes:      run.Bytes,
				DurationMS: run.Duration.Milliseconds(),
				Error:      run.Error,
			}
			if !run.FinishedAt.IsZero() {
				finished := run.FinishedAt
				row.FinishedAt = &finished
			}
			rows = append(rows, row)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": rows})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	err := s.session.Trigger(r.Context(), session.TriggerAPI)
	switch {
	case err == nil:
		s.logger.Info().
			Str("event", "api.trigger").
			Str("remote_addr", r.RemoteAddr).
			Msg("backup triggered via API")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	case errors.Is(err, session.ErrBusy):
		writeError(w, r, http.StatusConflict, "backup already running")
	default:
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	err := s.session.CancelArm(r.Context())
	switch {
	case err == nil:
		s.logger.Info().
			Str("event", "api.cancel").
			Str("remote_addr", r.RemoteAddr).
			Msg("pending activation canceled via API")
		writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
	case errors.Is(err, session.ErrNotArmed):
		writeError(w, r, http.StatusConflict, "no pending activation")
	default:
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}
