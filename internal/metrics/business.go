// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gesture metrics
	gestureDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeboat_gesture_decisions_total",
		Help: "Gesture recognizer decisions by kind",
	}, []string{"decision"}) // decision=armed|confirm|cancel

	// Session metrics
	sessionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeboat_session_state",
		Help: "Current session state (0=watching 1=armed 2=running 3=cooldown)",
	})

	sessionArmsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeboat_session_arms_total",
		Help: "Arm events by trigger source",
	}, []string{"trigger"}) // trigger=pointer|chord|api

	// Backup metrics
	backupRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeboat_backup_runs_total",
		Help: "Completed backup runs by outcome",
	}, []string{"outcome"}) // outcome=success|failure|canceled

	backupFilesCopiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeboat_backup_files_copied_total",
		Help: "Total number of files copied across all runs",
	})

	backupFilesFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeboat_backup_files_failed_total",
		Help: "Total number of per-file copy failures across all runs",
	})

	backupBytesCopiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeboat_backup_bytes_copied_total",
		Help: "Total number of bytes copied across all runs",
	})

	backupDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lifeboat_backup_duration_seconds",
		Help:    "Wall time of backup runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	})

	backupProgressPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeboat_backup_progress_percent",
		Help: "Progress of the running backup (0-100, 0 when idle)",
	})

	// System monitor metrics
	cpuGlobalPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeboat_cpu_global_percent",
		Help: "Machine-wide CPU usage sampled by the system monitor",
	})

	cpuProcessPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lifeboat_cpu_process_percent",
		Help: "Daemon CPU usage normalized by core count",
	})

	// Fleet metrics
	fleetPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeboat_fleet_publish_total",
		Help: "Fleet status publish attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	// Notification metrics
	notifyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeboat_notify_failures_total",
		Help: "Notification delivery failures by channel",
	}, []string{"channel"}) // channel=desktop|sound

	// Operational metrics
	configValidationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lifeboat_config_validation_errors_total",
		Help: "Total number of configuration validation errors",
	})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifeboat_config_reloads_total",
		Help: "Configuration reload attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure
)

func RecordGestureDecision(decision string) {
	gestureDecisionsTotal.WithLabelValues(decision).Inc()
}

func SetSessionState(state int)    { sessionState.Set(float64(state)) }
func IncSessionArm(trigger string) { sessionArmsTotal.WithLabelValues(trigger).Inc() }

func RecordBackupRun(outcome string, seconds float64) {
	backupRunsTotal.WithLabelValues(outcome).Inc()
	backupDurationSeconds.Observe(seconds)
}

func AddFilesCopied(n int)      { backupFilesCopiedTotal.Add(float64(n)) }
func IncFileCopyFailure()       { backupFilesFailedTotal.Inc() }
func AddBytesCopied(n int64)    { backupBytesCopiedTotal.Add(float64(n)) }
func SetBackupProgress(pct int) { backupProgressPercent.Set(float64(pct)) }

func RecordCPUSample(global, process float64) {
	cpuGlobalPercent.Set(global)
	cpuProcessPercent.Set(process)
}

func IncFleetPublish(outcome string) { fleetPublishTotal.WithLabelValues(outcome).Inc() }

func IncNotifyFailure(channel string) { notifyFailuresTotal.WithLabelValues(channel).Inc() }

func IncConfigValidationError()      { configValidationErrors.Inc() }
func IncConfigReload(outcome string) { configReloadsTotal.WithLabelValues(outcome).Inc() }
