package concept

import (
	"encoding/json"
	"sort"
)

// Stub is a reference to a related concept as embedded in another concept's
// record. A stub is not guaranteed to be resolvable.
type Stub struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"conceptType"`
}

// IsCandidate reports whether the stub carries enough data to be looked up.
func (s Stub) IsCandidate() bool {
	return s.ID != "" && s.Label != "" && s.Type != ""
}

// Record is a full concept as returned by the catalogue.
type Record struct {
	ID              string            `json:"id"`
	Label           string            `json:"label"`
	Type            string            `json:"type"`
	RelatedConcepts map[string][]Stub `json:"relatedConcepts,omitempty"`
}

// IsUsable reports whether a resolved record can become a graph node.
func (r *Record) IsUsable() bool {
	return r != nil && r.ID != ""
}

// Candidates flattens every relation category into one list and drops
// malformed stubs. Categories are visited in name order so the result is
// stable for identical input.
func (r *Record) Candidates() []Stub {
	if r == nil || len(r.RelatedConcepts) == 0 {
		return nil
	}

	categories := make([]string, 0, len(r.RelatedConcepts))
	for name := range r.RelatedConcepts {
		categories = append(categories, name)
	}
	sort.Strings(categories)

	var out []Stub
	for _, name := range categories {
		for _, stub := range r.RelatedConcepts[name] {
			if stub.IsCandidate() {
				out = append(out, stub)
			}
		}
	}
	return out
}

// UnmarshalJSON tolerates catalogue payloads where a relatedConcepts entry is
// not an array (those categories are ignored) or an array element is null.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              string                     `json:"id"`
		Label           string                     `json:"label"`
		Type            string                     `json:"type"`
		RelatedConcepts map[string]json.RawMessage `json:"relatedConcepts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = raw.ID
	r.Label = raw.Label
	r.Type = raw.Type
	r.RelatedConcepts = nil

	for name, msg := range raw.RelatedConcepts {
		var group []*Stub
		if err := json.Unmarshal(msg, &group); err != nil {
			continue
		}
		stubs := make([]Stub, 0, len(group))
		for _, s := range group {
			if s != nil {
				stubs = append(stubs, *s)
			}
		}
		if r.RelatedConcepts == nil {
			r.RelatedConcepts = make(map[string][]Stub)
		}
		r.RelatedConcepts[name] = stubs
	}
	return nil
}
