// SPDX-License-Identifier: MIT

// Package report writes the post-run receipt into the destination tree, so
// the rescue medium documents what it carries.
package report

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"

	"github.com/lifeboat-sh/lifeboat/internal/backup"
	"github.com/lifeboat-sh/lifeboat/internal/log"
)

// Filename returns the receipt name for a run that finished at ts, local
// time, second resolution.
func Filename(ts time.Time) string {
	return "backup_log_" + ts.Format("2006-01-02_15-04-05") + ".txt"
}

// Render formats the receipt body. Copied and failed counts only appear when
// something went wrong; a clean run keeps the short form.
func Render(res backup.Result) []byte {
	var b bytes.Buffer
	b.WriteString("Backup completed.\n\n")
	fmt.Fprintf(&b, "Total size:\t\t%s (%d bytes)\n", humanize.IBytes(uint64(res.Bytes)), res.Bytes)
	fmt.Fprintf(&b, "Number of files:\t%d\n", res.Files)
	if res.Failed > 0 {
		fmt.Fprintf(&b, "Copied:\t\t\t%d\n", res.Copied)
		fmt.Fprintf(&b, "Failed:\t\t\t%d\n", res.Failed)
	}
	fmt.Fprintf(&b, "Wall time:\t\t%s\n", res.Duration.Round(time.Millisecond))
	return b.Bytes()
}

// Write renders the receipt and places it in dir atomically: temp file,
// fsync, rename. Returns the path written.
func Write(ctx context.Context, dir string, res backup.Result, ts time.Time) (string, error) {
	path := filepath.Join(dir, Filename(ts))

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return "", fmt.Errorf("report: create pending file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			log.FromContext(ctx).Debug().Err(err).Msg("cleanup pending report")
		}
	}()

	if _, err := pending.Write(Render(res)); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("report: commit %s: %w", path, err)
	}
	return path, nil
}
