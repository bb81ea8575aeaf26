// SPDX-License-Identifier: MIT

package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lifeboat-sh/lifeboat/internal/metrics"
	"github.com/lifeboat-sh/lifeboat/internal/telemetry"
)

const copyBufSize = 32 * 1024

var tracer = telemetry.Tracer("lifeboat/backup")

// Engine runs backup jobs. A single Engine is shared between the session
// loop and the API; Progress is safe to read while a run is in flight.
type Engine struct {
	logger   zerolog.Logger
	progress atomic.Int32
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Progress reports the percentage of files processed by the current or most
// recent run, 0 to 100.
func (e *Engine) Progress() int {
	return int(e.progress.Load())
}

// Run copies every accepted file under req.Source into a mirrored tree under
// req.Destination. Per-file copy errors are logged and counted but do not
// abort the run. Cancellation stops the run between files and returns the
// partial Result alongside the context error.
func (e *Engine) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "backup.run")
	defer span.End()
	span.SetAttributes(telemetry.RunAttributes(req.Source, req.Destination, req.Trigger)...)

	if st, err := os.Stat(req.Source); err != nil || !st.IsDir() {
		span.SetAttributes(telemetry.ErrorAttributes("source_missing")...)
		span.SetStatus(codes.Error, "source missing")
		return Result{}, fmt.Errorf("%w: %s", ErrSourceMissing, req.Source)
	}
	if _, err := os.Stat(req.Destination); err != nil {
		span.SetAttributes(telemetry.ErrorAttributes("destination_missing")...)
		span.SetStatus(codes.Error, "destination missing")
		return Result{}, fmt.Errorf("%w: %s", ErrDestMissing, req.Destination)
	}

	scanCtx, scanSpan := tracer.Start(ctx, "backup.scan")
	sum, err := Scan(scanCtx, req.Source, req.Filter)
	scanSpan.End()
	if err != nil {
		span.SetStatus(codes.Error, "scan failed")
		return Result{}, err
	}
	if sum.Files == 0 {
		span.SetAttributes(telemetry.ErrorAttributes("no_files")...)
		span.SetStatus(codes.Error, "no files to copy")
		return Result{}, ErrNoFiles
	}

	planCtx, planSpan := tracer.Start(ctx, "backup.plan")
	plan, err := BuildPlan(planCtx, req.Source, req.Destination, req.Filter)
	if err != nil {
		planSpan.End()
		span.SetStatus(codes.Error, "plan failed")
		return Result{}, err
	}
	for _, dir := range plan.Dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			planSpan.End()
			span.SetStatus(codes.Error, "mkdir failed")
			return Result{}, fmt.Errorf("backup: create %s: %w", dir, err)
		}
	}
	planSpan.End()

	maxOpen := req.MaxOpen
	if maxOpen <= 0 {
		maxOpen = maxOpenFiles()
	}

	e.progress.Store(0)
	e.logger.Info().
		Str("event", "backup.start").
		Str("source", req.Source).
		Str("destination", req.Destination).
		Int("files", sum.Files).
		Int64("bytes", sum.Bytes).
		Int("max_open", maxOpen).
		Msg("backup started")

	var done, failed, copied atomic.Int64

	// At most ten progress lines a second; the 100% line always goes out.
	limiter := rate.NewLimiter(10, 1)
	var mu sync.Mutex
	lastPct := -1
	publish := func() {
		processed := done.Load()
		pct := int(processed) * 100 / sum.Files
		mu.Lock()
		defer mu.Unlock()
		if pct <= lastPct {
			return
		}
		lastPct = pct
		e.progress.Store(int32(pct))
		metrics.SetBackupProgress(pct)
		if pct == 100 || limiter.Allow() {
			e.logger.Info().
				Str("event", "backup.progress").
				Int("percent", pct).
				Msgf("progress: %d%% (%d of %d files)", pct, processed, sum.Files)
		}
	}

	copyCtx, copySpan := tracer.Start(ctx, "backup.copy")
	defer copySpan.End()

	g, gctx := errgroup.WithContext(copyCtx)
	g.SetLimit(maxOpen)
	for _, pair := range plan.Pairs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := copyFile(pair.Src, pair.Dst)
			if err != nil {
				failed.Add(1)
				metrics.IncFileCopyFailure()
				e.logger.Warn().
					Err(err).
					Str("event", "backup.copy_failed").
					Str("source", pair.Src).
					Msg("file copy failed")
			} else {
				copied.Add(n)
				metrics.AddFilesCopied(1)
				metrics.AddBytesCopied(n)
			}
			done.Add(1)
			publish()
			return nil
		})
	}

	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	res := Result{
		Files:    sum.Files,
		Copied:   int(done.Load() - failed.Load()),
		Failed:   int(failed.Load()),
		Bytes:    sum.Bytes,
		Duration: time.Since(start),
	}
	span.SetAttributes(telemetry.ResultAttributes(res.Files, res.Copied, res.Failed, copied.Load())...)
	if runErr != nil {
		span.SetStatus(codes.Error, "canceled")
		e.logger.Warn().
			Str("event", "backup.canceled").
			Int64("processed", done.Load()).
			Int("files", sum.Files).
			Msg("backup canceled")
		return res, fmt.Errorf("backup: canceled after %d of %d files: %w", done.Load(), sum.Files, runErr)
	}

	e.logger.Info().
		Str("event", "backup.done").
		Int("copied", res.Copied).
		Int("failed", res.Failed).
		Int64("bytes", copied.Load()).
		Dur("duration", res.Duration).
		Msg("backup finished")
	return res, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, err
	}
	n, err := io.CopyBuffer(out, in, make([]byte, copyBufSize))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
