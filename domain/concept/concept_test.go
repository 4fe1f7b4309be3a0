package concept_test

import (
	"encoding/json"
	"testing"

	"github.com/kenoir/weco-concept-explorer/domain/concept"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStub_IsCandidate(t *testing.T) {
	tests := []struct {
		name string
		stub concept.Stub
		want bool
	}{
		{"complete", concept.Stub{ID: "a", Label: "A", Type: "Subject"}, true},
		{"missing id", concept.Stub{Label: "A", Type: "Subject"}, false},
		{"missing label", concept.Stub{ID: "a", Type: "Subject"}, false},
		{"missing type", concept.Stub{ID: "a", Label: "A"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stub.IsCandidate())
		})
	}
}

func TestRecord_Candidates(t *testing.T) {
	record := &concept.Record{
		ID:    "root",
		Label: "Root",
		Type:  "Concept",
		RelatedConcepts: map[string][]concept.Stub{
			"relatedTo": {
				{ID: "b", Label: "B", Type: "Subject"},
				{ID: "", Label: "nameless", Type: "Subject"},
			},
			"broaderThan": {
				{ID: "a", Label: "A", Type: "Subject"},
				{ID: "c", Label: "C"},
			},
		},
	}

	candidates := record.Candidates()

	require.Len(t, candidates, 2)
	ids := []string{candidates[0].ID, candidates[1].ID}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRecord_CandidatesEmpty(t *testing.T) {
	var nilRecord *concept.Record
	assert.Empty(t, nilRecord.Candidates())
	assert.Empty(t, (&concept.Record{ID: "x"}).Candidates())
}

func TestRecord_UnmarshalCataloguePayload(t *testing.T) {
	payload := `{
		"id": "avkn7rq3",
		"label": "Anatomy",
		"type": "Subject",
		"identifiers": [{"value": "ignored"}],
		"relatedConcepts": {
			"narrowerThan": [
				{"id": "x1", "label": "Biology", "conceptType": "Concept"},
				null
			],
			"fieldsOfWork": "not-an-array",
			"relatedTo": []
		}
	}`

	var record concept.Record
	require.NoError(t, json.Unmarshal([]byte(payload), &record))

	assert.Equal(t, "avkn7rq3", record.ID)
	assert.Equal(t, "Anatomy", record.Label)
	assert.Equal(t, "Subject", record.Type)
	assert.True(t, record.IsUsable())
	assert.NotContains(t, record.RelatedConcepts, "fieldsOfWork")
	require.Len(t, record.RelatedConcepts["narrowerThan"], 1)
	assert.Equal(t, concept.Stub{ID: "x1", Label: "Biology", Type: "Concept"}, record.RelatedConcepts["narrowerThan"][0])
}

func TestRecord_IsUsable(t *testing.T) {
	var nilRecord *concept.Record
	assert.False(t, nilRecord.IsUsable())
	assert.False(t, (&concept.Record{Label: "no id"}).IsUsable())
	assert.True(t, (&concept.Record{ID: "x"}).IsUsable())
}
