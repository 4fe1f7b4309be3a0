package interaction

// EmptyStateMessage replaces the canvas when a graph has nothing beyond its root.
const EmptyStateMessage = "No related concepts found to build a graph."

// Scene is everything needed to draw one frame. It is rebuilt from live body
// positions every time it is requested.
type Scene struct {
	Surface Surface    `json:"surface"`
	ViewBox [4]float64 `json:"viewBox"`
	View    View       `json:"view"`

	// Blank is set when no graph is loaded.
	Blank bool `json:"blank,omitempty"`
	// EmptyMessage is non-empty when the empty state is shown instead of a canvas.
	EmptyMessage string `json:"emptyMessage,omitempty"`

	RootID     string `json:"rootId,omitempty"`
	SelectedID string `json:"selectedId,omitempty"`
	Settled    bool   `json:"settled"`

	Links   []LinkShape `json:"links"`
	Nodes   []NodeShape `json:"nodes"`
	Tooltip Tooltip     `json:"tooltip"`
}

// IsEmptyState reports whether the scene shows the empty-state text.
func (s Scene) IsEmptyState() bool { return s.EmptyMessage != "" }

// LinkShape is one edge line in layout coordinates.
type LinkShape struct {
	Source string    `json:"source"`
	Target string    `json:"target"`
	X1     float64   `json:"x1"`
	Y1     float64   `json:"y1"`
	X2     float64   `json:"x2"`
	Y2     float64   `json:"y2"`
	Style  EdgeStyle `json:"style"`
}

// NodeShape is a node group: circle, label plate and label, translated to X, Y.
type NodeShape struct {
	ID     string      `json:"id"`
	Label  string      `json:"label"`
	X      float64     `json:"x"`
	Y      float64     `json:"y"`
	Pinned bool        `json:"pinned,omitempty"`
	Circle CircleStyle `json:"circle"`
	Plate  PlateStyle  `json:"plate"`
	Text   TextStyle   `json:"text"`
}

// Tooltip is the hover label, positioned in surface coordinates.
type Tooltip struct {
	Visible bool    `json:"visible"`
	Label   string  `json:"label,omitempty"`
	ID      string  `json:"id,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
}
