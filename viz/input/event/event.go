package event

// Type represents the type of input event
type Type int

const (
	Press   Type = iota // Button pressed down (debounced for surface actions)
	Release             // Button released (debounced for surface actions)
	Hold                // Continuous while pressed (not debounced)
	Move                // Pointer moved while a button is held
	Scroll              // Wheel step, sign carried by the delta
)

func (t Type) String() string {
	switch t {
	case Press:
		return "press"
	case Release:
		return "release"
	case Hold:
		return "hold"
	case Move:
		return "move"
	case Scroll:
		return "scroll"
	}
	return "unknown"
}
