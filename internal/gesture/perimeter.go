// SPDX-License-Identifier: MIT

package gesture

import (
	"math"
	"time"

	"github.com/lifeboat-sh/lifeboat/internal/input"
)

const (
	// cornerTolerance is the radius around corners and the width of the
	// edge bands, in pixels.
	cornerTolerance = 70
	// sampleDistance is the minimum travel between recorded waypoints and
	// the slack allowed before a move counts as backtracking.
	sampleDistance = 10
	// moveThreshold is the travel below which motion is treated as jitter.
	moveThreshold = 4
	// maxHuntPoints caps the waypoint path while hunting the first side.
	maxHuntPoints = 1000
)

type direction uint8

const (
	clockwise direction = iota
	counterclockwise
)

// Perimeter recognizes rectangles traced along the screen border. A trace
// starts near the top-left corner; the first completed side decides the
// direction (top edge clockwise, left edge counterclockwise). Only a
// clockwise rectangle arms. Once armed, a clockwise rectangle confirms and
// a counterclockwise one cancels.
type Perimeter struct {
	corners  [4]input.Point // 0=TL 1=TR 2=BR 3=BL
	path     []input.Point
	side     int // 0 = hunting the first side, 1..3 = remaining sides
	dir      direction
	armed    bool
	prev     input.Point
	havePrev bool
}

// NewPerimeter builds a recognizer for a screen of the given size.
func NewPerimeter(geom input.Geometry) *Perimeter {
	return &Perimeter{
		corners: [4]input.Point{
			{X: 0, Y: 0},
			{X: geom.W, Y: 0},
			{X: geom.W, Y: geom.H},
			{X: 0, Y: geom.H},
		},
	}
}

// Feed consumes a pointer motion event. Non-motion events are ignored.
func (p *Perimeter) Feed(ev input.Event) Decision {
	if ev.Kind != input.KindMotion {
		return DecisionNone
	}
	pos := ev.Pos
	if !p.havePrev {
		p.havePrev = true
		p.prev = pos
		return DecisionNone
	}
	moved := dist(pos, p.prev) > moveThreshold
	p.prev = pos
	if !moved {
		return DecisionNone
	}
	return p.process(pos)
}

// Tick is a no-op; the perimeter recognizer is driven by motion alone.
func (p *Perimeter) Tick(time.Time) Decision { return DecisionNone }

// Reset drops the trace and a pending armed stage. The last seen pointer
// position is kept so the jitter gate stays accurate.
func (p *Perimeter) Reset() {
	p.path = nil
	p.side = 0
	p.dir = clockwise
	p.armed = false
}

func (p *Perimeter) process(pos input.Point) Decision {
	if p.side == 0 {
		p.huntFirstSide(pos)
	}

	if !p.armed {
		// Arming requires a clockwise rectangle. A counterclockwise first
		// side still runs through the clockwise side checks and dies there.
		if p.traceClockwise(pos) {
			p.armed = true
			p.path = p.path[:0]
			p.side = 0
			return DecisionArmed
		}
		return DecisionNone
	}

	switch p.dir {
	case clockwise:
		if p.traceClockwise(pos) {
			p.armed = false
			return DecisionConfirmed
		}
	case counterclockwise:
		if p.traceCounterclockwise(pos) {
			p.armed = false
			return DecisionCanceled
		}
	}
	return DecisionNone
}

// huntFirstSide accumulates waypoints near the top-left corner and decides
// the direction once the path reaches an adjacent corner with a valid edge.
func (p *Perimeter) huntFirstSide(pos input.Point) {
	// Re-entering the corner zone restarts the trace.
	if near(pos, p.corners[0], cornerTolerance) {
		p.path = append(p.path[:0], pos)
	}

	if len(p.path) > 0 && !near(pos, p.last(), sampleDistance) {
		p.path = append(p.path, pos)
		if len(p.path) > maxHuntPoints {
			p.path = p.path[:0]
		}
	}
	if len(p.path) == 0 {
		return
	}

	switch {
	case near(p.last(), p.corners[1], cornerTolerance):
		if p.validTopEdge() {
			p.dir = clockwise
			p.side = 1
		}
	case near(p.last(), p.corners[3], cornerTolerance):
		if p.validLeftEdge() {
			p.dir = counterclockwise
			p.side = 1
		}
	}
}

// validTopEdge checks that every hunted waypoint stayed in the top band and
// never backtracked left by more than the sampling slack. An invalid path
// is discarded.
func (p *Perimeter) validTopEdge() bool {
	prevX := p.path[0].X
	for _, pt := range p.path {
		if pt.Y >= cornerTolerance || pt.X < prevX-sampleDistance {
			p.path = p.path[:0]
			return false
		}
		prevX = pt.X
	}
	return true
}

func (p *Perimeter) validLeftEdge() bool {
	prevY := p.path[0].Y
	for _, pt := range p.path {
		if pt.X >= cornerTolerance || pt.Y < prevY-sampleDistance {
			p.path = p.path[:0]
			return false
		}
		prevY = pt.Y
	}
	return true
}

// traceClockwise advances the clockwise side sequence: right edge down,
// bottom edge leftward, left edge up, closing at the top-left corner. The
// side blocks deliberately cascade so a point that lands on a corner is
// also checked against the next side.
func (p *Perimeter) traceClockwise(pos input.Point) bool {
	if p.side == 1 { // right edge, downward
		invalid := false
		if len(p.path) > 0 && !near(pos, p.last(), sampleDistance) {
			if pos.X < p.corners[1].X-cornerTolerance || pos.Y < p.last().Y-sampleDistance {
				invalid = true
			}
		}
		p.advance(pos, invalid, p.corners[2], 2)
	}
	if p.side == 2 { // bottom edge, leftward
		invalid := false
		if len(p.path) > 0 && !near(pos, p.last(), sampleDistance) {
			if pos.Y < p.corners[2].Y-cornerTolerance || pos.X > p.last().X+sampleDistance {
				invalid = true
			}
		}
		p.advance(pos, invalid, p.corners[3], 3)
	}
	if p.side == 3 { // left edge, upward
		invalid := false
		if len(p.path) > 0 && !near(pos, p.last(), sampleDistance) {
			if pos.X > cornerTolerance || pos.Y > p.last().Y+sampleDistance {
				invalid = true
			}
		}
		return p.advance(pos, invalid, p.corners[0], 4)
	}
	return false
}

// traceCounterclockwise mirrors traceClockwise: bottom edge rightward,
// right edge up, top edge leftward, closing at the top-left corner.
func (p *Perimeter) traceCounterclockwise(pos input.Point) bool {
	if p.side == 1 { // bottom edge, rightward
		invalid := false
		if len(p.path) > 0 && !near(pos, p.last(), sampleDistance) {
			if pos.Y < p.corners[2].Y-cornerTolerance || pos.X < p.last().X-sampleDistance {
				invalid = true
			}
		}
		p.advance(pos, invalid, p.corners[2], 2)
	}
	if p.side == 2 { // right edge, upward
		invalid := false
		if len(p.path) > 0 && !near(pos, p.last(), sampleDistance) {
			if pos.X < p.corners[1].X-cornerTolerance || pos.Y > p.last().Y+sampleDistance {
				invalid = true
			}
		}
		p.advance(pos, invalid, p.corners[1], 3)
	}
	if p.side == 3 { // top edge, leftward
		invalid := false
		if len(p.path) > 0 && !near(pos, p.last(), sampleDistance) {
			if pos.Y > cornerTolerance || pos.X > p.last().X+sampleDistance {
				invalid = true
			}
		}
		return p.advance(pos, invalid, p.corners[0], 4)
	}
	return false
}

// advance records one more waypoint of the side being traced, restarting
// the hunt when the point was invalid. Reaching corner moves to nextSide;
// nextSide 4 closes the rectangle.
func (p *Perimeter) advance(pos input.Point, invalid bool, corner input.Point, nextSide int) bool {
	if invalid {
		p.path = p.path[:0]
		p.side = 0
		return false
	}
	p.path = append(p.path, pos)
	if near(p.last(), corner, cornerTolerance) {
		if nextSide != 4 {
			p.side = nextSide
			return false
		}
		p.path = p.path[:0]
		p.side = 0
		return true
	}
	return false
}

func (p *Perimeter) last() input.Point { return p.path[len(p.path)-1] }

func dist(a, b input.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

func near(a, b input.Point, tolerance int) bool {
	return dist(a, b) <= float64(tolerance)
}
