// SPDX-License-Identifier: MIT

package input

import "context"

// A Source delivers captured input events in capture order from a single
// goroutine. Stream blocks until ctx is done or the device fails; when emit
// returns an error the stream stops and Stream returns that error.
type Source interface {
	Stream(ctx context.Context, emit func(Event) error) error
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, emit func(Event) error) error

func (f SourceFunc) Stream(ctx context.Context, emit func(Event) error) error {
	return f(ctx, emit)
}

// GeometryProvider is implemented by sources that know the screen size.
type GeometryProvider interface {
	Geometry() Geometry
}
