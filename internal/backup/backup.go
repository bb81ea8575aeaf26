// SPDX-License-Identifier: MIT

// Package backup scans a source tree, mirrors its directory structure under
// a destination and copies the accepted files with a bounded worker group.
// Per-file failures never abort a run; they are logged and counted.
package backup

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrSourceMissing means the configured source does not exist or is
	// not a directory.
	ErrSourceMissing = errors.New("backup: source path does not exist")
	// ErrDestMissing means the configured destination does not exist.
	ErrDestMissing = errors.New("backup: destination path does not exist")
	// ErrNoFiles means the scan accepted nothing under the source.
	ErrNoFiles = errors.New("backup: no files to copy")
)

// Filter selects files by extension (lowercase, leading dot). An empty
// filter accepts everything; files without an extension only pass an empty
// filter.
type Filter map[string]struct{}

// NewFilter builds a filter from configured extensions, with or without the
// leading dot.
func NewFilter(exts []string) Filter {
	f := make(Filter, len(exts))
	for _, ext := range exts {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		f[e] = struct{}{}
	}
	if len(f) == 0 {
		return nil
	}
	return f
}

// Accepts reports whether the file at path passes the filter.
func (f Filter) Accepts(path string) bool {
	if len(f) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return false
	}
	_, ok := f[ext]
	return ok
}

// Summary is what a scan found under the source root.
type Summary struct {
	Files int
	Bytes int64
}

// Pair is one planned copy, absolute source to absolute destination.
type Pair struct {
	Src string
	Dst string
}

// Plan lists the directories to create and the files to copy. Dirs mirrors
// every source directory, including ones the filter leaves empty.
type Plan struct {
	Dirs  []string
	Pairs []Pair
}

// Request describes one backup run. Paths must be absolute; config
// validation guarantees that for daemon-driven runs.
type Request struct {
	Source      string
	Destination string
	// Trigger names what started the run ("pointer", "chord", "api",
	// "once"); it only annotates the run span.
	Trigger string
	Filter  Filter
	// MaxOpen bounds concurrent copies; 0 derives it from the process
	// file-descriptor limit.
	MaxOpen int
}

// Result is the outcome of one run. Copied+Failed == Files holds for
// completed runs; a canceled run reports what was processed so far.
type Result struct {
	Files    int
	Copied   int
	Failed   int
	Bytes    int64 // cumulative file size found by the scan
	Duration time.Duration
}

// clampOpenFiles keeps a derived descriptor bound inside sane limits.
func clampOpenFiles(n int) int {
	const lo, hi = 64, 8192
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
