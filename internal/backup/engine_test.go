// SPDX-License-Identifier: MIT

package backup_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/lifeboat-sh/lifeboat/internal/backup"
)

func TestEngineRunCopiesTree(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := makeTree(t)
	dst := t.TempDir()
	eng := backup.NewEngine(zerolog.Nop())

	res, err := eng.Run(context.Background(), backup.Request{Source: src, Destination: dst})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Files)
	assert.Equal(t, 5, res.Copied)
	assert.Zero(t, res.Failed)
	assert.Equal(t, int64(21), res.Bytes)
	assert.Positive(t, res.Duration)
	assert.Equal(t, 100, eng.Progress())

	for path, want := range map[string]string{
		"a.txt":         "alpha",
		"b.log":         "bravo!",
		"noext":         "x",
		"sub/c.txt":     "charlie",
		"sub/deep/d.md": "dd",
	} {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(path)))
		require.NoError(t, err, path)
		assert.Equal(t, want, string(got), path)
	}

	info, err := os.Stat(filepath.Join(dst, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestEngineRunAppliesFilter(t *testing.T) {
	src := makeTree(t)
	dst := t.TempDir()
	eng := backup.NewEngine(zerolog.Nop())

	res, err := eng.Run(context.Background(), backup.Request{
		Source:      src,
		Destination: dst,
		Filter:      backup.NewFilter([]string{"txt"}),
		MaxOpen:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Copied)

	_, err = os.Stat(filepath.Join(dst, "b.log"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dst, "sub", "deep"))
	assert.NoError(t, err, "empty directories are still mirrored")
}

func TestEngineRunMissingPaths(t *testing.T) {
	eng := backup.NewEngine(zerolog.Nop())
	tmp := t.TempDir()

	_, err := eng.Run(context.Background(), backup.Request{
		Source:      filepath.Join(tmp, "nope"),
		Destination: tmp,
	})
	require.ErrorIs(t, err, backup.ErrSourceMissing)
	assert.Contains(t, err.Error(), "nope")

	_, err = eng.Run(context.Background(), backup.Request{
		Source:      tmp,
		Destination: filepath.Join(tmp, "void"),
	})
	require.ErrorIs(t, err, backup.ErrDestMissing)

	// A file-typed source can arrive via hot reload; it must be rejected,
	// not walked as a single-file tree.
	file := filepath.Join(tmp, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = eng.Run(context.Background(), backup.Request{
		Source:      file,
		Destination: tmp,
	})
	require.ErrorIs(t, err, backup.ErrSourceMissing)
}

func TestEngineRunNoFiles(t *testing.T) {
	eng := backup.NewEngine(zerolog.Nop())

	_, err := eng.Run(context.Background(), backup.Request{
		Source:      t.TempDir(),
		Destination: t.TempDir(),
	})
	require.ErrorIs(t, err, backup.ErrNoFiles)

	src := t.TempDir()
	writeFile(t, filepath.Join(src, "b.log"), "bravo!")
	_, err = eng.Run(context.Background(), backup.Request{
		Source:      src,
		Destination: t.TempDir(),
		Filter:      backup.NewFilter([]string{"txt"}),
	})
	require.ErrorIs(t, err, backup.ErrNoFiles)
}

func TestEngineRunPerFileFailureDoesNotAbort(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := makeTree(t)
	dst := t.TempDir()
	// A directory squatting on a planned file path fails that copy only.
	require.NoError(t, os.MkdirAll(filepath.Join(dst, "a.txt"), 0o750))
	eng := backup.NewEngine(zerolog.Nop())

	res, err := eng.Run(context.Background(), backup.Request{Source: src, Destination: dst, MaxOpen: 2})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Files)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 4, res.Copied)
	assert.Equal(t, res.Files, res.Copied+res.Failed)

	got, err := os.ReadFile(filepath.Join(dst, "sub", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "charlie", string(got))
}

func TestEngineRunPreCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	eng := backup.NewEngine(zerolog.Nop())

	res, err := eng.Run(ctx, backup.Request{Source: makeTree(t), Destination: t.TempDir()})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Files)
}

// triggerWriter fires once when a log line contains needle. Hooking the
// progress line is the only deterministic way to cancel between files.
type triggerWriter struct {
	needle []byte
	fire   func()
	once   sync.Once
}

func (w *triggerWriter) Write(p []byte) (int, error) {
	if bytes.Contains(p, w.needle) {
		w.once.Do(w.fire)
	}
	return len(p), nil
}

func TestEngineRunCanceledMidRunReportsPartialResult(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := t.TempDir()
	for i := 0; i < 3; i++ {
		writeFile(t, filepath.Join(src, fmt.Sprintf("f%d.txt", i)), "payload")
	}
	dst := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &triggerWriter{needle: []byte("backup.progress"), fire: cancel}
	eng := backup.NewEngine(zerolog.New(w))

	res, err := eng.Run(ctx, backup.Request{Source: src, Destination: dst, MaxOpen: 1})
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "canceled after 1 of 3 files")
	assert.Equal(t, 3, res.Files)
	assert.Equal(t, 1, res.Copied)
	assert.Zero(t, res.Failed)
}

func TestEngineRunProgressIsMonotonic(t *testing.T) {
	src := t.TempDir()
	for i := 0; i < 7; i++ {
		writeFile(t, filepath.Join(src, fmt.Sprintf("f%d.txt", i)), "payload")
	}
	dst := t.TempDir()

	var buf syncBuffer
	eng := backup.NewEngine(zerolog.New(&buf))

	_, err := eng.Run(context.Background(), backup.Request{Source: src, Destination: dst, MaxOpen: 1})
	require.NoError(t, err)
	assert.Equal(t, 100, eng.Progress())

	matches := regexp.MustCompile(`"percent":(\d+)`).FindAllStringSubmatch(buf.String(), -1)
	require.NotEmpty(t, matches)
	prev := -1
	for _, m := range matches {
		pct, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		assert.Greater(t, pct, prev)
		prev = pct
	}
	assert.Equal(t, 100, prev, "the final progress line is always written")
}

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}
