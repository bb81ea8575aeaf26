// SPDX-License-Identifier: MIT

// Package notify delivers user-facing feedback: desktop popups and beeps.
// Both channels are best effort; a dead notification daemon or a missing
// audio player must never stall or fail a backup.
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lifeboat-sh/lifeboat/internal/metrics"
)

// Kind selects the canned popup content.
type Kind uint8

const (
	ArmedPointer Kind = iota
	ArmedChord
	Started
	Canceled
	Done
	GenericError
	ConfigError
)

func (k Kind) String() string {
	switch k {
	case ArmedPointer:
		return "armed_pointer"
	case ArmedChord:
		return "armed_chord"
	case Started:
		return "started"
	case Canceled:
		return "canceled"
	case Done:
		return "done"
	case GenericError:
		return "generic_error"
	case ConfigError:
		return "config_error"
	default:
		return "unknown"
	}
}

// Notification is one popup. Message overrides the canned body for the two
// error kinds and is ignored otherwise.
type Notification struct {
	Kind    Kind
	Message string
}

// Desktop shows popups.
type Desktop interface {
	Show(ctx context.Context, n Notification) error
}

// Sounder plays the positive or the negative beep. Play blocks until the
// sound finished; detaching is the caller's business.
type Sounder interface {
	Play(ctx context.Context, positive bool) error
}

const playTimeout = 5 * time.Second

// Notifier fans one event out to the desktop and the speaker. Failures are
// logged and counted, never returned.
type Notifier struct {
	desktop Desktop
	sounder Sounder
	logger  zerolog.Logger
}

func NewNotifier(desktop Desktop, sounder Sounder, logger zerolog.Logger) *Notifier {
	return &Notifier{desktop: desktop, sounder: sounder, logger: logger}
}

// Notify shows the popup and, for kinds that carry a sound, plays the beep
// detached so an armed user gets instant feedback while the session keeps
// consuming input.
func (n *Notifier) Notify(ctx context.Context, note Notification) {
	if positive, ok := beepFor(note.Kind); ok {
		bctx := context.WithoutCancel(ctx)
		go func() {
			bctx, cancel := context.WithTimeout(bctx, playTimeout)
			defer cancel()
			if err := n.sounder.Play(bctx, positive); err != nil {
				metrics.IncNotifyFailure("sound")
				n.logger.Warn().Err(err).
					Str("event", "notify.sound_failed").
					Stringer("kind", note.Kind).
					Msg("beep failed")
			}
		}()
	}

	if err := n.desktop.Show(ctx, note); err != nil {
		metrics.IncNotifyFailure("desktop")
		n.logger.Warn().Err(err).
			Str("event", "notify.desktop_failed").
			Stringer("kind", note.Kind).
			Msg("desktop notification failed")
	}
}

// beepFor reports whether kind carries a sound, and which one. Errors stay
// silent; they already have the popup.
func beepFor(k Kind) (positive, ok bool) {
	switch k {
	case ArmedPointer, ArmedChord, Started, Done:
		return true, true
	case Canceled:
		return false, true
	default:
		return false, false
	}
}
