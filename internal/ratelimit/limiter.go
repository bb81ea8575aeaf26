// SPDX-License-Identifier: MIT

// Package ratelimit guards the daemon against trigger and notification
// storms. A wedged input device can replay the arm gesture in a tight loop,
// and without a budget the session would beep and pop up dialogs until
// someone pulls the plug.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var suppressed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "lifeboat_ratelimit_suppressed_total",
		Help: "Arm attempts and notifications suppressed by the storm guard",
	},
	[]string{"limit", "source"},
)

// Config holds the storm guard budgets.
type Config struct {
	// Arm admission shared across every trigger source.
	ArmRate  rate.Limit
	ArmBurst int

	// Per-source arm admission so one noisy trigger cannot burn the
	// budget of the others.
	SourceRate  rate.Limit
	SourceBurst int

	// Desktop notification budget.
	NotifyRate  rate.Limit
	NotifyBurst int
}

// DefaultConfig is tuned for a human operator: arming a few times in a row
// is fine, arming every second for a minute is not.
func DefaultConfig() Config {
	return Config{
		ArmRate:  rate.Every(10 * time.Second),
		ArmBurst: 3,

		SourceRate:  rate.Every(15 * time.Second),
		SourceBurst: 2,

		NotifyRate:  rate.Every(2 * time.Second),
		NotifyBurst: 5,
	}
}

// Limiter applies the arm and notification budgets. The zero value is not
// usable; construct with New.
type Limiter struct {
	cfg Config

	arms     *rate.Limiter
	notifies *rate.Limiter

	mu        sync.Mutex
	perSource map[string]*rate.Limiter
}

// New creates a limiter with the given budgets.
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:       cfg,
		arms:      rate.NewLimiter(cfg.ArmRate, cfg.ArmBurst),
		notifies:  rate.NewLimiter(cfg.NotifyRate, cfg.NotifyBurst),
		perSource: make(map[string]*rate.Limiter),
	}
}

// AllowArm reports whether an arm attempt from the given trigger source may
// proceed. Denials are counted, not queued; a suppressed trigger simply does
// not fire.
func (l *Limiter) AllowArm(source string) bool {
	if !l.arms.Allow() {
		suppressed.WithLabelValues("global", source).Inc()
		return false
	}

	if !l.sourceLimiter(source).Allow() {
		suppressed.WithLabelValues("per_source", source).Inc()
		return false
	}

	return true
}

// AllowNotify reports whether another desktop notification fits the budget.
// The notification kind is recorded on suppression so storms stay visible
// in the metrics even when the popups are not.
func (l *Limiter) AllowNotify(kind string) bool {
	if l.notifies.Allow() {
		return true
	}
	suppressed.WithLabelValues("notify", kind).Inc()
	return false
}

// sourceLimiter returns the limiter for a trigger source, creating it on
// first use. The source set is tiny and fixed, so entries are never evicted.
func (l *Limiter) sourceLimiter(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.perSource[source]
	if !ok {
		lim = rate.NewLimiter(l.cfg.SourceRate, l.cfg.SourceBurst)
		l.perSource[source] = lim
	}
	return lim
}
