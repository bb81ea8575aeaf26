// SPDX-License-Identifier: MIT

package ratelimit

import (
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// hourly refills make the burst counts exact within a test run.
func testConfig() Config {
	return Config{
		ArmRate:     rate.Every(time.Hour),
		ArmBurst:    3,
		SourceRate:  rate.Every(time.Hour),
		SourceBurst: 2,
		NotifyRate:  rate.Every(time.Hour),
		NotifyBurst: 5,
	}
}

func TestAllowArmGlobalBurst(t *testing.T) {
	cfg := testConfig()
	cfg.SourceBurst = 100
	limiter := New(cfg)

	allowed := 0
	for i := 0; i < 10; i++ {
		if limiter.AllowArm("pointer") {
			allowed++
		}
	}

	if allowed != 3 {
		t.Errorf("expected the global burst of 3 arms to pass, got %d", allowed)
	}
}

func TestAllowArmPerSourceIsolation(t *testing.T) {
	cfg := testConfig()
	cfg.ArmBurst = 100
	limiter := New(cfg)

	for i := 0; i < 5; i++ {
		limiter.AllowArm("pointer")
	}
	if limiter.AllowArm("pointer") {
		t.Error("pointer arms should be exhausted after the burst")
	}

	// A pointer storm must not burn the chord budget.
	if !limiter.AllowArm("chord") {
		t.Error("chord arm should pass with its own fresh budget")
	}
	if !limiter.AllowArm("api") {
		t.Error("api arm should pass with its own fresh budget")
	}
}

func TestAllowArmCreatesSourceLimitersLazily(t *testing.T) {
	limiter := New(testConfig())

	limiter.AllowArm("pointer")
	limiter.AllowArm("chord")
	limiter.AllowArm("pointer")

	limiter.mu.Lock()
	count := len(limiter.perSource)
	limiter.mu.Unlock()

	if count != 2 {
		t.Errorf("expected 2 source limiters, got %d", count)
	}
}

func TestAllowNotifyBudget(t *testing.T) {
	limiter := New(testConfig())

	allowed := 0
	for i := 0; i < 8; i++ {
		if limiter.AllowNotify("armed_pointer") {
			allowed++
		}
	}

	if allowed != 5 {
		t.Errorf("expected the notification burst of 5 to pass, got %d", allowed)
	}
}

func TestDefaultConfigAdmitsFirstEvents(t *testing.T) {
	limiter := New(DefaultConfig())

	if !limiter.AllowArm("api") {
		t.Error("a single arm must pass with default budgets")
	}
	if !limiter.AllowNotify("done") {
		t.Error("a single notification must pass with default budgets")
	}
}
