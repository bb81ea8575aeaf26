// SPDX-License-Identifier: MIT

//go:build !linux || !cgo

package input

import (
	"context"
	"errors"
)

// X11Source stub for platforms without X11 capture support.
type X11Source struct{}

// NewX11Source returns an error when X11 capture is unavailable. The daemon
// falls back to API-only triggering when this error is returned.
func NewX11Source() (*X11Source, error) {
	return nil, errors.New("input: X11 capture not available: build requires linux and CGO_ENABLED=1")
}

// Geometry stub for non-X11 builds.
func (s *X11Source) Geometry() Geometry { return Geometry{} }

// Close stub for non-X11 builds.
func (s *X11Source) Close() error { return nil }

// Stream stub for non-X11 builds.
func (s *X11Source) Stream(_ context.Context, _ func(Event) error) error {
	return errors.New("input: X11 capture not available")
}
