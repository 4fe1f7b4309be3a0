package interaction

import "fmt"

// EventKind enumerates the pointer input the controller understands.
type EventKind int

const (
	EventClick EventKind = iota + 1
	EventHoverStart
	EventHoverEnd
	EventDragStart
	EventDragMove
	EventDragEnd
	EventWheel
)

var eventNames = map[EventKind]string{
	EventClick:      "click",
	EventHoverStart: "hover-start",
	EventHoverEnd:   "hover-end",
	EventDragStart:  "drag-start",
	EventDragMove:   "drag-move",
	EventDragEnd:    "drag-end",
	EventWheel:      "wheel",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind maps a wire name such as "drag-start" to its kind.
func ParseEventKind(name string) (EventKind, error) {
	for k, n := range eventNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	if _, ok := eventNames[k]; !ok {
		return nil, fmt.Errorf("unknown event kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is one pointer input. X and Y are surface coordinates, which share
// the viewBox origin at the centre of the surface.
type Event struct {
	Kind EventKind `json:"kind"`

	// NodeID names the node under the pointer. When empty the controller
	// hit-tests X and Y against node circles and label plates.
	NodeID string `json:"nodeId,omitempty"`

	X float64 `json:"x"`
	Y float64 `json:"y"`

	// DeltaY is the wheel delta in pixels; negative values zoom in.
	DeltaY float64 `json:"deltaY,omitempty"`
	// Scale is a pinch factor. When non-zero it replaces DeltaY.
	Scale float64 `json:"scale,omitempty"`
}
