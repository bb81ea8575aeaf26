// SPDX-License-Identifier: MIT

package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lifeboat-sh/lifeboat/internal/api"
	"github.com/lifeboat-sh/lifeboat/internal/backup"
	"github.com/lifeboat-sh/lifeboat/internal/config"
	"github.com/lifeboat-sh/lifeboat/internal/health"
	"github.com/lifeboat-sh/lifeboat/internal/history"
	"github.com/lifeboat-sh/lifeboat/internal/input"
	"github.com/lifeboat-sh/lifeboat/internal/notify"
	"github.com/lifeboat-sh/lifeboat/internal/session"
)

type fixture struct {
	srv     *httptest.Server
	loop    *session.Loop
	store   *history.Store
	cfg     config.Config
	cancel  context.CancelFunc
	stopped chan error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Defaults()
	cfg.Source = t.TempDir()
	cfg.Destination = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Source, "a.txt"), []byte("alpha"), 0o600))

	store, err := history.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	holder := config.NewHolder(cfg, config.NewLoader("", "test"))
	loop := session.New(session.Options{
		Holder:   holder,
		Source:   &input.Replay{Size: input.Geometry{W: 1920, H: 1080}},
		Engine:   backup.NewEngine(zerolog.Nop()),
		History:  store,
		Notifier: notify.NewNotifier(notify.NopDesktop{}, notify.NopSounder{}, zerolog.Nop()),
		Logger:   zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- loop.Run(ctx) }()

	server := api.New(api.Options{
		Holder:  holder,
		Session: loop,
		History: store,
		Health:  health.NewManager("test"),
		Version: "test",
	})

	f := &fixture{
		srv:     httptest.NewServer(server.Handler()),
		loop:    loop,
		store:   store,
		cfg:     cfg,
		cancel:  cancel,
		stopped: stopped,
	}
	t.Cleanup(func() {
		f.srv.Close()
		f.cancel()
		select {
		case <-f.stopped:
		case <-time.After(5 * time.Second):
			t.Error("session loop did not stop")
		}
	})
	return f
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	var body map[string]any
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func (f *fixture) post(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+path, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func TestHealthAndReadiness(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })
	f := newFixture(t)

	resp, body := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, body = f.get(t, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ready"])
}

func TestStatusReportsConfigAndState(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })
	f := newFixture(t)

	resp, body := f.get(t, "/api/v1/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "watching", body["state"])

	cfgMap, ok := body["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.cfg.Source, cfgMap["source"])
	assert.Equal(t, f.cfg.Destination, cfgMap["destination"])
	assert.Equal(t, "pointer", cfgMap["trigger"])
	assert.Nil(t, body["last_run"])
}

func TestTriggerRunsAndLandsInHistory(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })
	f := newFixture(t)

	resp, body := f.post(t, "/api/v1/trigger")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "started", body["status"])

	require.Eventually(t, func() bool {
		runs, err := f.store.Recent(context.Background(), 5)
		return err == nil && len(runs) == 1 && runs[0].Outcome == history.OutcomeSuccess
	}, 5*time.Second, 10*time.Millisecond)

	resp, body = f.get(t, "/api/v1/runs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs, ok := body["runs"].([]any)
	require.True(t, ok)
	require.Len(t, runs, 1)
	run := runs[0].(map[string]any)
	assert.Equal(t, "api", run["trigger"])
	assert.Equal(t, history.OutcomeSuccess, run["outcome"])
}

func TestRunsRejectsBadLimit(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })
	f := newFixture(t)

	resp, body := f.get(t, "/api/v1/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
	assert.NotEmpty(t, body["request_id"])
}

func TestCancelWithoutPendingArm(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })
	f := newFixture(t)

	resp, body := f.post(t, "/api/v1/cancel")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "no pending activation", body["error"])
}
