package graph

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Node is a concept placed in an exploration graph.
// Depth is the BFS distance from the root at first discovery and is never
// revised afterwards.
type Node struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Type   string `json:"type,omitempty"`
	Depth  int    `json:"depth"`
	IsRoot bool   `json:"isRoot"`
}

// Edge links a discoverer to the concept it discovered.
// Edges are undirected in meaning; the direction only records discovery.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Touches reports whether id is either endpoint of the edge.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Other returns the endpoint opposite to id.
func (e Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Stats summarises a graph for API responses and logging.
type Stats struct {
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
	MaxDepth  int     `json:"max_depth"`
	Density   float64 `json:"density"`
}

// Data is an exploration graph: nodes keyed by id plus a list of edges.
// A Data value is built once per root and must not be mutated after it has
// been handed to a layout run.
type Data struct {
	nodes  map[string]*Node
	order  []string
	edges  []Edge
	edgeIx map[Edge]struct{}
	rootID string
}

// New creates a graph seeded with its root node at depth 0.
func New(rootID, label, typ string) *Data {
	d := &Data{
		nodes:  make(map[string]*Node),
		edgeIx: make(map[Edge]struct{}),
		rootID: rootID,
	}
	d.nodes[rootID] = &Node{ID: rootID, Label: label, Type: typ, Depth: 0, IsRoot: true}
	d.order = append(d.order, rootID)
	return d
}

// RootID returns the id of the root node.
func (d *Data) RootID() string { return d.rootID }

// Has reports whether a node with the given id exists.
func (d *Data) Has(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Node returns the node with the given id.
func (d *Data) Node(id string) (Node, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// AddNode inserts a non-root node. It returns false, leaving the existing
// node untouched, when the id is already present: first discovery wins.
func (d *Data) AddNode(id, label, typ string, depth int) bool {
	if _, exists := d.nodes[id]; exists {
		return false
	}
	d.nodes[id] = &Node{ID: id, Label: label, Type: typ, Depth: depth}
	d.order = append(d.order, id)
	return true
}

// AddEdge records source → target unless that exact directed pair already
// exists. The mirrored pair is a distinct edge.
func (d *Data) AddEdge(source, target string) bool {
	e := Edge{Source: source, Target: target}
	if _, exists := d.edgeIx[e]; exists {
		return false
	}
	d.edgeIx[e] = struct{}{}
	d.edges = append(d.edges, e)
	return true
}

// HasEdge reports whether the exact directed pair exists.
func (d *Data) HasEdge(source, target string) bool {
	_, ok := d.edgeIx[Edge{Source: source, Target: target}]
	return ok
}

// Nodes returns copies of all nodes in discovery order.
func (d *Data) Nodes() []Node {
	out := make([]Node, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, *d.nodes[id])
	}
	return out
}

// Edges returns a copy of the edge list in discovery order.
func (d *Data) Edges() []Edge {
	out := make([]Edge, len(d.edges))
	copy(out, d.edges)
	return out
}

// NodeCount returns the number of nodes.
func (d *Data) NodeCount() int { return len(d.order) }

// EdgeCount returns the number of edges.
func (d *Data) EdgeCount() int { return len(d.edges) }

// IsEmpty reports whether nothing beyond the root was found.
func (d *Data) IsEmpty() bool {
	return len(d.order) <= 1 && len(d.edges) == 0
}

// Neighbours returns the ids sharing an edge with id, in either direction.
func (d *Data) Neighbours(id string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, e := range d.edges {
		if e.Touches(id) {
			other := e.Other(id)
			if other != id {
				out[other] = struct{}{}
			}
		}
	}
	return out
}

// Degree counts edges incident to id. A self edge counts twice.
func (d *Data) Degree(id string) int {
	n := 0
	for _, e := range d.edges {
		if e.Source == id {
			n++
		}
		if e.Target == id {
			n++
		}
	}
	return n
}

// Stats computes summary statistics.
func (d *Data) Stats() Stats {
	s := Stats{NodeCount: len(d.order), EdgeCount: len(d.edges)}
	for _, n := range d.nodes {
		if n.Depth > s.MaxDepth {
			s.MaxDepth = n.Depth
		}
	}
	if s.NodeCount > 1 {
		maxPossibleEdges := s.NodeCount * (s.NodeCount - 1) / 2
		s.Density = float64(s.EdgeCount) / float64(maxPossibleEdges)
	}
	return s
}

// Validate checks the structural invariants of the graph.
func (d *Data) Validate() error {
	root, ok := d.nodes[d.rootID]
	if !ok {
		return errors.New("root node missing")
	}
	if !root.IsRoot || root.Depth != 0 {
		return fmt.Errorf("root node %q must have depth 0 and the root flag", d.rootID)
	}
	for id, n := range d.nodes {
		if id != n.ID {
			return fmt.Errorf("node keyed %q carries id %q", id, n.ID)
		}
		if id != d.rootID && (n.IsRoot || n.Depth < 1) {
			return fmt.Errorf("non-root node %q has root flag or depth %d", id, n.Depth)
		}
	}
	for _, e := range d.edges {
		if !d.Has(e.Source) || !d.Has(e.Target) {
			return fmt.Errorf("edge %s→%s references an unknown node", e.Source, e.Target)
		}
	}
	return nil
}

// MarshalJSON renders the graph as {nodes, edges, stats, empty}.
func (d *Data) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		RootID string `json:"root_id"`
		Nodes  []Node `json:"nodes"`
		Edges  []Edge `json:"edges"`
		Stats  Stats  `json:"stats"`
		Empty  bool   `json:"empty"`
	}{
		RootID: d.rootID,
		Nodes:  d.Nodes(),
		Edges:  d.Edges(),
		Stats:  d.Stats(),
		Empty:  d.IsEmpty(),
	})
}
