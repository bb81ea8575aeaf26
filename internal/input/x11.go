// SPDX-License-Identifier: MIT

//go:build linux && cgo

package input

// #cgo LDFLAGS: -lX11
// #include <X11/Xlib.h>
// #include <X11/keysym.h>
import "C"

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// samplePeriod is how often the pointer and chord-key state are polled.
// Waypoints are only recorded every 10px of travel, so ~66Hz is more than
// enough resolution for border tracing.
const samplePeriod = 15 * time.Millisecond

// buttonMasks maps XQueryPointer state bits to pointer buttons.
var buttonMasks = [...]struct {
	bit uint
	btn Button
}{
	{C.Button1Mask, ButtonLeft},
	{C.Button3Mask, ButtonRight},
	{C.Button2Mask, ButtonMiddle},
}

type chordKeycodes struct {
	ctrlL, ctrlR C.KeyCode
	altL, altR   C.KeyCode
	b            C.KeyCode
}

// X11Source captures pointer motion, button state and the chord keys by
// sampling the X server. Sampling instead of grabbing keeps the daemon
// invisible to other clients and needs no X extensions.
type X11Source struct {
	dpy    *C.Display
	root   C.Window
	geom   Geometry
	keys   chordKeycodes
	closed bool
}

// NewX11Source connects to the display named by $DISPLAY and queries the
// screen geometry. The caller must call Close when done.
func NewX11Source() (*X11Source, error) {
	dpy := C.XOpenDisplay(nil)
	if dpy == nil {
		return nil, errors.New("input: cannot open X display (is DISPLAY set?)")
	}

	screen := C.XDefaultScreen(dpy)
	return &X11Source{
		dpy:  dpy,
		root: C.XDefaultRootWindow(dpy),
		geom: Geometry{
			W: int(C.XDisplayWidth(dpy, screen)),
			H: int(C.XDisplayHeight(dpy, screen)),
		},
		keys: chordKeycodes{
			ctrlL: C.XKeysymToKeycode(dpy, C.XK_Control_L),
			ctrlR: C.XKeysymToKeycode(dpy, C.XK_Control_R),
			altL:  C.XKeysymToKeycode(dpy, C.XK_Alt_L),
			altR:  C.XKeysymToKeycode(dpy, C.XK_Alt_R),
			b:     C.XKeysymToKeycode(dpy, C.XK_b),
		},
	}, nil
}

// Geometry returns the screen size captured at connect time.
func (s *X11Source) Geometry() Geometry { return s.geom }

// Close disconnects from the X server. Stream must not be running.
func (s *X11Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	C.XCloseDisplay(s.dpy)
	return nil
}

// Stream polls the server every samplePeriod and emits motion, button and
// chord-key transitions in sample order. All Xlib calls happen on this
// goroutine; the display must not be used concurrently.
func (s *X11Source) Stream(ctx context.Context, emit func(Event) error) error {
	ticker := time.NewTicker(samplePeriod)
	defer ticker.Stop()

	var (
		last    Point
		havePos bool
		buttons uint
		chord   [3]bool // ctrl, alt, b
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if !s.connAlive() {
			return errors.New("input: X connection lost")
		}

		var root, child C.Window
		var rootX, rootY, winX, winY C.int
		var mask C.uint
		if C.XQueryPointer(s.dpy, s.root, &root, &child,
			&rootX, &rootY, &winX, &winY, &mask) == 0 {
			// Pointer is on a different screen of a multi-head setup.
			continue
		}

		p := s.clamp(Point{X: int(rootX), Y: int(rootY)})
		if !havePos || p != last {
			havePos = true
			last = p
			if err := emit(Event{Kind: KindMotion, Pos: p}); err != nil {
				return err
			}
		}

		if err := emitButtonDiff(&buttons, uint(mask), emit); err != nil {
			return err
		}
		if err := s.emitChordDiff(&chord, emit); err != nil {
			return err
		}
	}
}

// connAlive probes the display socket. The default Xlib I/O error handler
// terminates the whole process when the connection drops; checking the fd
// first turns the common failure (X server gone) into a normal error.
func (s *X11Source) connAlive() bool {
	fds := []unix.PollFd{{Fd: int32(C.XConnectionNumber(s.dpy))}}
	n, err := unix.Poll(fds, 0)
	if err != nil || n == 0 {
		return true
	}
	return fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) == 0
}

func (s *X11Source) clamp(p Point) Point {
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.X > s.geom.W {
		p.X = s.geom.W
	}
	if p.Y > s.geom.H {
		p.Y = s.geom.H
	}
	return p
}

func emitButtonDiff(prev *uint, mask uint, emit func(Event) error) error {
	for _, bm := range buttonMasks {
		now := mask&bm.bit != 0
		was := *prev&bm.bit != 0
		if now == was {
			continue
		}
		kind := KindButtonRelease
		if now {
			kind = KindButtonPress
		}
		if err := emit(Event{Kind: kind, Button: bm.btn}); err != nil {
			return err
		}
	}
	*prev = mask
	return nil
}

func (s *X11Source) emitChordDiff(prev *[3]bool, emit func(Event) error) error {
	var keys [32]C.char
	C.XQueryKeymap(s.dpy, &keys[0])

	now := [3]bool{
		keycodeDown(&keys, s.keys.ctrlL) || keycodeDown(&keys, s.keys.ctrlR),
		keycodeDown(&keys, s.keys.altL) || keycodeDown(&keys, s.keys.altR),
		keycodeDown(&keys, s.keys.b),
	}
	for i, key := range [3]Key{KeyCtrl, KeyAlt, KeyB} {
		if now[i] == prev[i] {
			continue
		}
		kind := KindKeyRelease
		if now[i] {
			kind = KindKeyPress
		}
		if err := emit(Event{Kind: kind, Key: key}); err != nil {
			return err
		}
	}
	*prev = now
	return nil
}

func keycodeDown(keys *[32]C.char, kc C.KeyCode) bool {
	if kc == 0 {
		return false
	}
	return byte(keys[kc/8])&(1<<(kc%8)) != 0
}
