package ports

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/domain/events"
)

// ErrConceptNotFound is wrapped by resolvers when the catalogue has no
// record for an id, as opposed to failing to answer
var ErrConceptNotFound = errors.New("concept not found")

// ConceptResolver turns a concept identifier into its full record
// This is a port in hexagonal architecture - the graph builder doesn't know
// whether records come from the catalogue, a cache or a test fake
type ConceptResolver interface {
	// Resolve returns the record for id, or an error when no usable record
	// could be obtained (not found, network failure, malformed payload)
	Resolve(ctx context.Context, id string) (*concept.Record, error)
}

// ResolverFunc adapts a function to the ConceptResolver interface
type ResolverFunc func(ctx context.Context, id string) (*concept.Record, error)

// Resolve calls f(ctx, id)
func (f ResolverFunc) Resolve(ctx context.Context, id string) (*concept.Record, error) {
	return f(ctx, id)
}

// UpstreamResponse is a raw catalogue response forwarded unchanged by the
// proxy endpoints
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// CatalogueProxy forwards concept and works lookups to the upstream catalogue
type CatalogueProxy interface {
	// FetchConcept returns the upstream response for /concepts/{id}
	FetchConcept(ctx context.Context, id string) (*UpstreamResponse, error)

	// FetchWorks returns the upstream response for /works?subjects={subjects}
	FetchWorks(ctx context.Context, subjects string) (*UpstreamResponse, error)
}

// RecordCache stores resolved concept records
type RecordCache interface {
	// Get retrieves a record, reporting whether it was present
	Get(ctx context.Context, id string) (*concept.Record, bool, error)

	// Set stores a record with the given TTL
	Set(ctx context.Context, record *concept.Record, ttl time.Duration) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
