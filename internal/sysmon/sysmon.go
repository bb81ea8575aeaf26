// SPDX-License-Identifier: MIT

// Package sysmon samples CPU usage into a plain-text file beside the other
// run artifacts, the forensic record of what the machine was doing while a
// rescue ran.
package sysmon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"

	"github.com/lifeboat-sh/lifeboat/internal/metrics"
)

// Monitor is what the daemon and the session see: a background sampler plus
// labeled markers around backup runs.
type Monitor interface {
	Run(ctx context.Context) error
	Mark(label string)
}

// Sampler reads /proc counters every interval and appends one line per
// sample to the cpu log.
type Sampler struct {
	logger   zerolog.Logger
	fs       procfs.FS
	proc     procfs.Proc
	interval time.Duration
	ncpu     float64

	mu     sync.Mutex
	file   *os.File
	closed bool

	lastTotal float64
	lastIdle  float64
	lastProc  float64
	lastWall  time.Time
}

// New builds a sampler writing to a fresh timestamped file under dir. On
// platforms without procfs, or when the log file cannot be created, sampling
// is disabled with a single warning.
func New(dir string, interval time.Duration, logger zerolog.Logger) Monitor {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		logger.Warn().Err(err).Msg("cpu sampling disabled: no procfs")
		return Nop{}
	}
	proc, err := fs.Self()
	if err != nil {
		logger.Warn().Err(err).Msg("cpu sampling disabled: cannot read own process")
		return Nop{}
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		logger.Warn().Err(err).Msg("cpu sampling disabled: cannot create log dir")
		return Nop{}
	}
	path := filepath.Join(dir, logFilename(time.Now()))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		logger.Warn().Err(err).Msg("cpu sampling disabled: cannot create log file")
		return Nop{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Sampler{
		logger:   logger,
		fs:       fs,
		proc:     proc,
		interval: interval,
		ncpu:     float64(runtime.NumCPU()),
		file:     file,
	}
}

func logFilename(ts time.Time) string {
	return "cpu_log_" + ts.Format("2006-01-02_15-04-05") + ".txt"
}

// Run samples until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		_ = s.file.Close()
		s.closed = true
		s.mu.Unlock()
	}()

	if err := s.prime(); err != nil {
		return fmt.Errorf("sysmon: prime counters: %w", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sample(); err != nil {
				s.logger.Debug().Err(err).Msg("cpu sample failed")
			}
		}
	}
}

// Mark drops a labeled separator into the log so runs can be correlated
// with the surrounding samples.
func (s *Sampler) Mark(label string) {
	if err := s.writeLine("--- " + label + " ---\n"); err != nil {
		s.logger.Debug().Err(err).Msg("cpu log marker failed")
	}
}

func (s *Sampler) prime() error {
	stat, err := s.fs.Stat()
	if err != nil {
		return err
	}
	ps, err := s.proc.Stat()
	if err != nil {
		return err
	}
	s.lastTotal, s.lastIdle = cpuCounters(stat.CPUTotal)
	s.lastProc = ps.CPUTime()
	s.lastWall = time.Now()
	return nil
}

func (s *Sampler) sample() error {
	stat, err := s.fs.Stat()
	if err != nil {
		return err
	}
	ps, err := s.proc.Stat()
	if err != nil {
		return err
	}
	now := time.Now()
	total, idle := cpuCounters(stat.CPUTotal)
	procCPU := ps.CPUTime()

	dTotal := total - s.lastTotal
	dIdle := idle - s.lastIdle
	dProc := procCPU - s.lastProc
	dWall := now.Sub(s.lastWall).Seconds()
	s.lastTotal, s.lastIdle, s.lastProc, s.lastWall = total, idle, procCPU, now

	// Counters move in kernel-tick granularity; a stalled delta is skipped,
	// not reported as zero load.
	if dTotal <= 0 || dWall <= 0 {
		return nil
	}
	global := 100 * (dTotal - dIdle) / dTotal
	process := 100 * dProc / dWall / s.ncpu

	metrics.RecordCPUSample(global, process)
	return s.writeLine(fmt.Sprintf("Global CPU Usage: %.2f%%\t\tProcess CPU Usage: %.2f%%\n", global, process))
}

func (s *Sampler) writeLine(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	_, err := s.file.WriteString(line)
	return err
}

func cpuCounters(c procfs.CPUStat) (total, idle float64) {
	idle = c.Idle + c.Iowait
	total = idle + c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
	return total, idle
}

// Nop replaces the sampler where /proc is unavailable.
type Nop struct{}

func (Nop) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (Nop) Mark(string) {}
