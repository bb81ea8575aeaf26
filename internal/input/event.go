// Package input captures pointer and keyboard activity and normalizes it
// into a small event model the gesture recognizers consume. The X11 source
// is the only real capture backend; tests and tooling use Replay.
package input

// Kind classifies an input event.
type Kind uint8

const (
	KindMotion Kind = iota
	KindButtonPress
	KindButtonRelease
	KindKeyPress
	KindKeyRelease
)

func (k Kind) String() string {
	switch k {
	case KindMotion:
		return "motion"
	case KindButtonPress:
		return "button_press"
	case KindButtonRelease:
		return "button_release"
	case KindKeyPress:
		return "key_press"
	case KindKeyRelease:
		return "key_release"
	default:
		return "unknown"
	}
}

// Button identifies a pointer button.
type Button uint8

const (
	ButtonLeft Button = iota
	ButtonRight
	ButtonMiddle
	ButtonOther
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return "other"
	}
}

// Key identifies the keys the chord recognizer cares about. Everything
// outside the chord maps to KeyOther.
type Key uint8

const (
	KeyCtrl Key = iota
	KeyAlt
	KeyB
	KeyOther
)

func (k Key) String() string {
	switch k {
	case KeyCtrl:
		return "ctrl"
	case KeyAlt:
		return "alt"
	case KeyB:
		return "b"
	default:
		return "other"
	}
}

// Point is a pointer position in screen coordinates, origin top-left.
type Point struct {
	X int
	Y int
}

// Geometry is the size of the captured screen in pixels.
type Geometry struct {
	W int
	H int
}

// Event is one captured input event. Only the fields implied by Kind are
// meaningful: Pos for motion, Button for button events, Key for key events.
type Event struct {
	Kind   Kind
	Button Button
	Key    Key
	Pos    Point
}

// Motion builds a pointer motion event.
func Motion(x, y int) Event { return Event{Kind: KindMotion, Pos: Point{X: x, Y: y}} }

// Press builds a button press event.
func Press(b Button) Event { return Event{Kind: KindButtonPress, Button: b} }

// Release builds a button release event.
func Release(b Button) Event { return Event{Kind: KindButtonRelease, Button: b} }

// KeyDown builds a key press event.
func KeyDown(k Key) Event { return Event{Kind: KindKeyPress, Key: k} }

// KeyUp builds a key release event.
func KeyUp(k Key) Event { return Event{Kind: KindKeyRelease, Key: k} }
