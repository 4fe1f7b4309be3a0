// Package eventbridge publishes domain events to an AWS EventBridge bus.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// maxEntries is the PutEvents limit per call.
const maxEntries = 10

// API is the subset of the EventBridge client used by the publisher.
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher implements ports.EventPublisher on EventBridge.
type Publisher struct {
	client       API
	eventBusName string
	maxRetries   int
	backoff      time.Duration
	logger       *zap.Logger
}

// NewPublisher creates a new EventBridge publisher.
func NewPublisher(client API, eventBusName string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		maxRetries:   3,
		backoff:      100 * time.Millisecond,
		logger:       logger,
	}
}

// Publish sends a single event.
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of at most ten.
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += maxEntries {
		end := min(i+maxEntries, len(domainEvents))
		if err := p.publishWithRetry(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// publishWithRetry resends only the entries EventBridge rejected, with
// exponential backoff.
func (p *Publisher) publishWithRetry(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := p.entries(domainEvents)
	backoff := p.backoff

	for attempt := 1; len(entries) > 0; attempt++ {
		failed, err := p.put(ctx, entries)
		if err != nil {
			return err
		}
		if len(failed) == 0 {
			return nil
		}
		if attempt >= p.maxRetries {
			return fmt.Errorf("%d events failed to publish after %d attempts", len(failed), attempt)
		}

		p.logger.Warn("Retrying event publication",
			zap.Int("attempt", attempt),
			zap.Int("failed", len(failed)),
			zap.Duration("backoff", backoff))

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
		entries = failed
	}
	return nil
}

func (p *Publisher) entries(domainEvents []events.DomainEvent) []types.PutEventsRequestEntry {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()))
			continue
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(events.Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
		})
	}
	return entries
}

// put sends one PutEvents call and returns the entries that were rejected.
func (p *Publisher) put(ctx context.Context, entries []types.PutEventsRequestEntry) ([]types.PutEventsRequestEntry, error) {
	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}
	if result.FailedEntryCount == 0 {
		p.logger.Debug("Events published to EventBridge",
			zap.Int("count", len(entries)),
			zap.String("eventBus", p.eventBusName))
		return nil, nil
	}

	var failed []types.PutEventsRequestEntry
	for i, entry := range result.Entries {
		if entry.ErrorCode == nil || i >= len(entries) {
			continue
		}
		p.logger.Error("Failed to publish event",
			zap.String("eventType", aws.ToString(entries[i].DetailType)),
			zap.String("errorCode", *entry.ErrorCode),
			zap.String("errorMessage", aws.ToString(entry.ErrorMessage)))
		failed = append(failed, entries[i])
	}
	return failed, nil
}

// LogPublisher writes events to the log instead of a bus. It is used when no
// event bus is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that only logs.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger}
}

// Publish logs a single event.
func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("eventID", event.GetEventID()),
		zap.String("aggregateID", event.GetAggregateID()),
		zap.Time("timestamp", event.GetTimestamp()))
	return nil
}

// PublishBatch logs each event.
func (p *LogPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		_ = p.Publish(ctx, event)
	}
	return nil
}

var (
	_ ports.EventPublisher = (*Publisher)(nil)
	_ ports.EventPublisher = (*LogPublisher)(nil)
)
