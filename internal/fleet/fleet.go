// SPDX-License-Identifier: MIT

// Package fleet publishes this node's status to Redis, so an operator can
// watch a whole fleet of kiosk machines from one place. Publishing is always
// best effort; a broken Redis never touches the backup path.
package fleet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lifeboat-sh/lifeboat/internal/metrics"
)

// Status is the JSON document other machines read.
type Status struct {
	Node      string    `json:"node"`
	State     string    `json:"state"`
	PID       int       `json:"pid"`
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	LastRun   *RunInfo  `json:"last_run,omitempty"`
}

// RunInfo summarizes the most recent finished run.
type RunInfo struct {
	Outcome    string    `json:"outcome"`
	FinishedAt time.Time `json:"finished_at"`
	Files      int       `json:"files"`
	Bytes      int64     `json:"bytes"`
}

// Publisher pushes status documents. Publish never returns an error: a
// failed push is logged and counted, nothing more.
type Publisher interface {
	Publish(ctx context.Context, st Status)
	Run(ctx context.Context) error
	Close() error
}

// Config holds Redis connection and publishing parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
	Node     string
	TTL      time.Duration // key expiry; two missed heartbeats and the node drops off
	Interval time.Duration // heartbeat period
}

// Redis is the real publisher.
type Redis struct {
	client   *redis.Client
	logger   zerolog.Logger
	node     string
	key      string
	version  string
	ttl      time.Duration
	interval time.Duration

	mu   sync.Mutex
	last *Status
}

// NewRedis connects and pings; a node that cannot reach Redis at boot should
// say so immediately rather than during an emergency.
func NewRedis(cfg Config, version string, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("fleet: redis connection failed: %w", err)
	}

	node := cfg.Node
	if node == "" {
		node, _ = os.Hostname()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	logger.Info().
		Str("addr", cfg.Addr).
		Str("node", node).
		Dur("ttl", ttl).
		Msg("connected to Redis, fleet publishing on")

	return &Redis{
		client:   client,
		logger:   logger,
		node:     node,
		key:      "lifeboat:status:" + node,
		version:  version,
		ttl:      ttl,
		interval: interval,
	}, nil
}

// Publish pushes st now and remembers it for the heartbeat. Node, PID,
// version and timestamp are stamped here; callers only fill in state and
// the last run.
func (r *Redis) Publish(ctx context.Context, st Status) {
	st.Node = r.node
	st.PID = os.Getpid()
	st.Version = r.version
	st.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.last = &st
	r.mu.Unlock()

	r.write(ctx, st)
}

// Run re-publishes the latest status every interval so the TTL stays ahead
// of the key as long as the daemon lives.
func (r *Redis) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.mu.Lock()
			last := r.last
			r.mu.Unlock()
			if last == nil {
				continue
			}
			st := *last
			st.UpdatedAt = time.Now().UTC()
			r.write(ctx, st)
		}
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) write(ctx context.Context, st Status) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	data, err := json.Marshal(st)
	if err != nil {
		metrics.IncFleetPublish("error")
		r.logger.Warn().Err(err).Msg("fleet status marshal failed")
		return
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		metrics.IncFleetPublish("error")
		r.logger.Warn().Err(err).Str("key", r.key).Msg("fleet publish failed")
		return
	}
	metrics.IncFleetPublish("ok")
}

// Nop is the publisher when fleet reporting is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, Status) {}

func (Nop) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (Nop) Close() error { return nil }
