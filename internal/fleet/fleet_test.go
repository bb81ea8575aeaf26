// SPDX-License-Identifier: MIT

package fleet

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newPublisher(t *testing.T, mr *miniredis.Miniredis, interval time.Duration) *Redis {
	t.Helper()
	pub, err := NewRedis(Config{
		Addr:     mr.Addr(),
		Node:     "kiosk-7",
		TTL:      90 * time.Second,
		Interval: interval,
	}, "v1.2.3", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	return pub
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(Config{Addr: addr}, "dev", zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fleet: redis connection failed")
}

func TestPublishSetsKeyWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	pub := newPublisher(t, mr, time.Minute)

	pub.Publish(context.Background(), Status{
		State: "watching",
		LastRun: &RunInfo{
			Outcome:    "success",
			FinishedAt: time.Date(2026, 8, 21, 8, 0, 0, 0, time.UTC),
			Files:      42,
			Bytes:      1290000,
		},
	})

	raw, err := mr.Get("lifeboat:status:kiosk-7")
	require.NoError(t, err)

	var st Status
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, "kiosk-7", st.Node)
	assert.Equal(t, "watching", st.State)
	assert.Equal(t, os.Getpid(), st.PID)
	assert.Equal(t, "v1.2.3", st.Version)
	assert.False(t, st.UpdatedAt.IsZero())
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "success", st.LastRun.Outcome)
	assert.Equal(t, 42, st.LastRun.Files)

	assert.Equal(t, 90*time.Second, mr.TTL("lifeboat:status:kiosk-7"))
}

func TestRunHeartbeatKeepsKeyAlive(t *testing.T) {
	leakOpt := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, leakOpt) })

	mr := miniredis.RunT(t)
	pub := newPublisher(t, mr, 20*time.Millisecond)

	pub.Publish(context.Background(), Status{State: "armed"})
	require.True(t, mr.Del("lifeboat:status:kiosk-7"))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, pub.Run(ctx))

	raw, err := mr.Get("lifeboat:status:kiosk-7")
	require.NoError(t, err, "heartbeat re-published the last status")

	var st Status
	require.NoError(t, json.Unmarshal([]byte(raw), &st))
	assert.Equal(t, "armed", st.State)
}

func TestRunWithoutPublishIsQuiet(t *testing.T) {
	mr := miniredis.RunT(t)
	pub := newPublisher(t, mr, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	require.NoError(t, pub.Run(ctx))

	_, err := mr.Get("lifeboat:status:kiosk-7")
	assert.Error(t, err, "nothing published, nothing heartbeats")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(context.Background(), Status{State: "watching"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Run(ctx))
	require.NoError(t, p.Close())
}
