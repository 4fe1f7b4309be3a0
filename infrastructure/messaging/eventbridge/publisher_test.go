package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kenoir/weco-concept-explorer/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeBus struct {
	calls [][]types.PutEventsRequestEntry
	// failFirst rejects the first entry of the first call.
	failFirst bool
	err       error
}

func (f *fakeBus) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, in.Entries)
	out := &eventbridge.PutEventsOutput{Entries: make([]types.PutEventsResultEntry, len(in.Entries))}
	if f.failFirst && len(f.calls) == 1 {
		out.FailedEntryCount = 1
		out.Entries[0] = types.PutEventsResultEntry{
			ErrorCode:    aws.String("InternalFailure"),
			ErrorMessage: aws.String("try again"),
		}
	}
	return out, nil
}

func builtEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewGraphBuilt("root", 2, 3, 2, 0, time.Millisecond, time.Unix(0, 0))
	}
	return out
}

func TestPublisher_Publish(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, "explorer-bus", nil)

	event := events.NewExplorationRerooted("s1", "a", "b", time.Unix(10, 0))
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, bus.calls, 1)
	entry := bus.calls[0][0]
	assert.Equal(t, "explorer-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, events.Source, aws.ToString(entry.Source))
	assert.Equal(t, "exploration.rerooted", aws.ToString(entry.DetailType))

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "b", detail["root_id"])
}

func TestPublisher_BatchesByTen(t *testing.T) {
	bus := &fakeBus{}
	p := NewPublisher(bus, "bus", nil)

	require.NoError(t, p.PublishBatch(context.Background(), builtEvents(23)))

	require.Len(t, bus.calls, 3)
	assert.Len(t, bus.calls[0], 10)
	assert.Len(t, bus.calls[1], 10)
	assert.Len(t, bus.calls[2], 3)
}

func TestPublisher_RetriesRejectedEntries(t *testing.T) {
	bus := &fakeBus{failFirst: true}
	p := NewPublisher(bus, "bus", nil)
	p.backoff = time.Millisecond

	require.NoError(t, p.PublishBatch(context.Background(), builtEvents(4)))

	require.Len(t, bus.calls, 2)
	assert.Len(t, bus.calls[1], 1)
}

func TestPublisher_ClientError(t *testing.T) {
	p := NewPublisher(&fakeBus{err: errors.New("no credentials")}, "bus", nil)
	err := p.Publish(context.Background(), builtEvents(1)[0])
	assert.ErrorContains(t, err, "no credentials")
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogPublisher(zap.New(core))

	require.NoError(t, p.PublishBatch(context.Background(), builtEvents(2)))

	entries := logs.FilterMessage("Domain event").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "graph.built", entries[0].ContextMap()["eventType"])
}
