// SPDX-License-Identifier: MIT

package input

import (
	"context"
	"time"
)

// Replay plays back a fixed sequence of events, optionally pacing them with
// a fixed inter-event delay. It implements Source and GeometryProvider.
type Replay struct {
	Events []Event
	Delay  time.Duration
	Size   Geometry
}

func (r *Replay) Geometry() Geometry { return r.Size }

// Stream emits the recorded events in order. It returns nil after the last
// event, ctx.Err() on cancellation, or the first error emit returns.
func (r *Replay) Stream(ctx context.Context, emit func(Event) error) error {
	for _, ev := range r.Events {
		if r.Delay > 0 {
			t := time.NewTimer(r.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}
