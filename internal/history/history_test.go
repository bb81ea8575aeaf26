// SPDX-License-Identifier: MIT

package history_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeboat-sh/lifeboat/internal/backup"
	"github.com/lifeboat-sh/lifeboat/internal/history"
)

func newStore(t *testing.T) (*history.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := history.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestBeginFinishRoundtrip(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	run := history.NewRun("pointer", time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC))
	require.Len(t, run.ID, 36, "NewRun assigns a UUID")
	require.NoError(t, s.Begin(ctx, run))

	runs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.OutcomeRunning, runs[0].Outcome)
	assert.True(t, runs[0].FinishedAt.IsZero())
	assert.Equal(t, run.StartedAt, runs[0].StartedAt)

	res := backup.Result{Files: 3, Copied: 3, Bytes: 21, Duration: 1500 * time.Millisecond}
	require.NoError(t, s.Finish(ctx, run.ID, history.OutcomeSuccess, res, ""))

	runs, err = s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	got := runs[0]
	assert.Equal(t, history.OutcomeSuccess, got.Outcome)
	assert.Equal(t, 3, got.Files)
	assert.Equal(t, 3, got.Copied)
	assert.Zero(t, got.Failed)
	assert.Equal(t, int64(21), got.Bytes)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.False(t, got.FinishedAt.IsZero())
	assert.Empty(t, got.Error)
}

func TestFinishUnknownRun(t *testing.T) {
	s, _ := newStore(t)
	err := s.Finish(context.Background(), "no-such-id", history.OutcomeFailure, backup.Result{}, "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown run")
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		run := history.NewRun("api", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Begin(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestLastSuccess(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC)

	got, err := s.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty store has no success yet")

	failed := history.NewRun("pointer", base)
	require.NoError(t, s.Begin(ctx, failed))
	require.NoError(t, s.Finish(ctx, failed.ID, history.OutcomeFailure, backup.Result{}, "disk on fire"))

	got, err = s.LastSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok := history.NewRun("chord", base.Add(time.Minute))
	require.NoError(t, s.Begin(ctx, ok))
	require.NoError(t, s.Finish(ctx, ok.ID, history.OutcomeSuccess, backup.Result{Files: 1, Copied: 1}, ""))

	canceled := history.NewRun("api", base.Add(2*time.Minute))
	require.NoError(t, s.Begin(ctx, canceled))
	require.NoError(t, s.Finish(ctx, canceled.ID, history.OutcomeCanceled, backup.Result{}, "context canceled"))

	got, err = s.LastSuccess(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ok.ID, got.ID)
	assert.Equal(t, "chord", got.Trigger)
}

func TestReopenKeepsData(t *testing.T) {
	s, path := newStore(t)
	ctx := context.Background()

	run := history.NewRun("pointer", time.Now())
	require.NoError(t, s.Begin(ctx, run))
	require.NoError(t, s.Close())

	s2, err := history.New(path)
	require.NoError(t, err)
	defer s2.Close()

	runs, err := s2.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
}
