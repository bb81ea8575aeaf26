// SPDX-License-Identifier: MIT

package gesture

import (
	"time"

	"github.com/lifeboat-sh/lifeboat/internal/input"
)

const (
	// chordHold is how long ctrl+alt+b must stay fully held before the
	// chord arms.
	chordHold = 5 * time.Second
	// clicksToDecide is the run of consecutive same-button clicks that
	// confirms or cancels an armed chord.
	clicksToDecide = 3
)

type chordState uint8

const (
	chordIdle chordState = iota
	chordHolding
	chordArmed
)

// Chord recognizes the keyboard activation: holding ctrl+alt+b together for
// five seconds arms it, then three consecutive left clicks confirm and three
// consecutive right clicks cancel. Releasing any chord key while holding
// drops back to idle; keys outside the chord are ignored.
type Chord struct {
	now   func() time.Time
	state chordState
	since time.Time
	held  [3]bool // ctrl, alt, b
	left  int
	right int
}

// NewChord builds a chord recognizer using the wall clock.
func NewChord() *Chord { return &Chord{now: time.Now} }

// Feed consumes one event. Key events update the held set; button presses
// count toward a decision while armed.
func (c *Chord) Feed(ev input.Event) Decision {
	if ev.Kind == input.KindKeyPress || ev.Kind == input.KindKeyRelease {
		c.trackKey(ev)
	}

	switch c.state {
	case chordIdle:
		if c.allHeld() {
			c.state = chordHolding
			c.since = c.now()
		}
	case chordHolding:
		if !c.allHeld() {
			c.state = chordIdle
			return DecisionNone
		}
		return c.Tick(c.now())
	case chordArmed:
		if ev.Kind == input.KindButtonPress {
			return c.click(ev.Button)
		}
	}
	return DecisionNone
}

// Tick promotes Holding to Armed once the chord has been held long enough.
// The session loop calls this on a timer so arming does not depend on the
// user generating another input event.
func (c *Chord) Tick(now time.Time) Decision {
	if c.state != chordHolding {
		return DecisionNone
	}
	if now.Sub(c.since) < chordHold {
		return DecisionNone
	}
	c.state = chordArmed
	c.left, c.right = 0, 0
	return DecisionArmed
}

// Reset drops an armed or holding stage. The held set survives, so a chord
// that is still physically down simply starts holding again.
func (c *Chord) Reset() {
	c.state = chordIdle
	c.left, c.right = 0, 0
}

func (c *Chord) trackKey(ev input.Event) {
	var idx int
	switch ev.Key {
	case input.KeyCtrl:
		idx = 0
	case input.KeyAlt:
		idx = 1
	case input.KeyB:
		idx = 2
	default:
		return
	}
	c.held[idx] = ev.Kind == input.KindKeyPress
}

func (c *Chord) allHeld() bool { return c.held[0] && c.held[1] && c.held[2] }

// click counts consecutive clicks of one button; a click of the opposite
// button restarts the other run. Buttons outside left/right are ignored.
func (c *Chord) click(b input.Button) Decision {
	switch b {
	case input.ButtonLeft:
		c.left++
		c.right = 0
	case input.ButtonRight:
		c.right++
		c.left = 0
	default:
		return DecisionNone
	}

	switch {
	case c.left >= clicksToDecide:
		c.Reset()
		return DecisionConfirmed
	case c.right >= clicksToDecide:
		c.Reset()
		return DecisionCanceled
	}
	return DecisionNone
}
