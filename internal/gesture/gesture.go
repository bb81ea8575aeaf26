// SPDX-License-Identifier: MIT

// Package gesture implements the two activation gestures: a rectangle traced
// along the screen perimeter and the ctrl+alt+b chord followed by clicks.
// Both recognizers are pure state machines over input events; they do no
// I/O and know nothing about what a decision triggers.
package gesture

import (
	"time"

	"github.com/lifeboat-sh/lifeboat/internal/input"
)

// Decision is a recognizer's verdict after consuming an event.
type Decision uint8

const (
	DecisionNone Decision = iota
	// DecisionArmed means the first stage completed; the next completed
	// gesture confirms or cancels.
	DecisionArmed
	DecisionConfirmed
	DecisionCanceled
)

func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionArmed:
		return "armed"
	case DecisionConfirmed:
		return "confirmed"
	case DecisionCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// A Recognizer turns raw input events into gesture decisions. Recognizers
// keep internal state and are not safe for concurrent use; the session loop
// serializes Feed, Tick and Reset.
type Recognizer interface {
	// Feed consumes one event and reports the decision it completes, if any.
	Feed(ev input.Event) Decision
	// Tick lets time-based recognizers advance without an input event.
	Tick(now time.Time) Decision
	// Reset drops any armed or in-progress gesture. Tracking of physically
	// held keys and the last pointer position survives a reset.
	Reset()
}
