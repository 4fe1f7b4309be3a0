package interaction

import "github.com/kenoir/weco-concept-explorer/domain/graph"

// Role decides how a node is drawn. Earlier roles take precedence.
type Role int

const (
	RoleSelected Role = iota
	RoleRoot
	RoleFirstHop
	RoleOuter
)

// RoleOf returns the drawing role of n given the current selection.
func RoleOf(n graph.Node, selectedID string) Role {
	switch {
	case selectedID != "" && n.ID == selectedID:
		return RoleSelected
	case n.IsRoot:
		return RoleRoot
	case n.Depth == 1:
		return RoleFirstHop
	default:
		return RoleOuter
	}
}

const (
	dimOpacity = 0.5

	labelPlateX      = 8
	labelPlateY      = -10
	labelPlateHeight = 20
	labelPlateRX     = 4
	labelTextX       = 12
)

type CircleStyle struct {
	Radius      float64 `json:"r"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

type PlateStyle struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	RX          float64 `json:"rx"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

type TextStyle struct {
	X          float64 `json:"x"`
	DY         string  `json:"dy"`
	FontSize   string  `json:"fontSize"`
	FontWeight int     `json:"fontWeight"`
	Fill       string  `json:"fill"`
	Opacity    float64 `json:"opacity"`
}

type EdgeStyle struct {
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

var roleFill = map[Role]string{
	RoleSelected: "#f59e0b",
	RoleRoot:     "#0ea5e9",
	RoleFirstHop: "#6366f1",
	RoleOuter:    "#a78bfa",
}

var roleRadius = map[Role]float64{
	RoleSelected: 16,
	RoleRoot:     8,
	RoleFirstHop: 6,
	RoleOuter:    4,
}

func circleStyle(role Role, emphasised bool) CircleStyle {
	s := CircleStyle{
		Radius:      roleRadius[role],
		Fill:        roleFill[role],
		Stroke:      "#fff",
		StrokeWidth: 1.5,
		Opacity:     dimOpacity,
	}
	if role == RoleSelected {
		s.Stroke = "#b45309"
		s.StrokeWidth = 3
	}
	if emphasised {
		s.Opacity = 1
	}
	return s
}

func plateStyle(selected, emphasised bool, textWidth float64) PlateStyle {
	s := PlateStyle{
		X:           labelPlateX,
		Y:           labelPlateY,
		Width:       textWidth + 8,
		Height:      labelPlateHeight,
		RX:          labelPlateRX,
		Fill:        "#fff",
		Stroke:      "#e5e7eb",
		StrokeWidth: 1.2,
		Opacity:     dimOpacity,
	}
	if selected {
		s.Fill = "#fffbe8"
		s.Stroke = "#f59e0b"
	}
	if emphasised {
		s.Opacity = 0.95
	}
	return s
}

func textStyle(selected, emphasised bool) TextStyle {
	s := TextStyle{
		X:          labelTextX,
		DY:         "0.31em",
		FontSize:   "12px",
		FontWeight: 400,
		Fill:       "#222",
		Opacity:    dimOpacity,
	}
	if selected {
		s.FontSize = "1.15em"
		s.FontWeight = 700
		s.Fill = "#b45309"
	}
	if emphasised {
		s.Opacity = 1
	}
	return s
}

func edgeStyle(touchesSelection bool) EdgeStyle {
	if touchesSelection {
		return EdgeStyle{Stroke: "#f59e0b", StrokeWidth: 2.5, Opacity: 1}
	}
	return EdgeStyle{Stroke: "rgba(34,34,34,0.25)", StrokeWidth: 1.2, Opacity: dimOpacity}
}

// Highlight is the emphasis set derived from a selection: the selected node
// plus every node sharing an edge with it in either direction.
type Highlight struct {
	selectedID string
	firstOrder map[string]struct{}
}

// NewHighlight computes the emphasis set. A nil graph or an empty selection
// emphasises nothing.
func NewHighlight(data *graph.Data, selectedID string) Highlight {
	h := Highlight{selectedID: selectedID}
	if data == nil || selectedID == "" {
		return h
	}
	h.firstOrder = data.Neighbours(selectedID)
	return h
}

// Node reports whether the node is emphasised.
func (h Highlight) Node(id string) bool {
	if h.selectedID == "" {
		return false
	}
	if id == h.selectedID {
		return true
	}
	_, ok := h.firstOrder[id]
	return ok
}

// Edge reports whether the edge touches the selection.
func (h Highlight) Edge(e graph.Edge) bool {
	return h.selectedID != "" && e.Touches(h.selectedID)
}

// FirstOrder returns the ids adjacent to the selection.
func (h Highlight) FirstOrder() []string {
	out := make([]string, 0, len(h.firstOrder))
	for id := range h.firstOrder {
		out = append(out, id)
	}
	return out
}
