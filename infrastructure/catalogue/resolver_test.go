package catalogue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kenoir/weco-concept-explorer/application/ports"
	"github.com/kenoir/weco-concept-explorer/domain/concept"
	"github.com/kenoir/weco-concept-explorer/infrastructure/cache"
	"github.com/kenoir/weco-concept-explorer/infrastructure/catalogue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string) *concept.Record {
	return &concept.Record{ID: id, Label: id, Type: "Subject"}
}

func TestCachingResolver_CachesResolvedRecords(t *testing.T) {
	var calls atomic.Int32
	source := ports.ResolverFunc(func(ctx context.Context, id string) (*concept.Record, error) {
		calls.Add(1)
		return record(id), nil
	})
	mem := cache.NewMemoryCache(100, 1<<20, nil)
	r := catalogue.NewCachingResolver(source, time.Minute, nil, nil, catalogue.Tier{Name: "memory", Cache: mem})

	for i := 0; i < 3; i++ {
		rec, err := r.Resolve(context.Background(), "a")
		require.NoError(t, err)
		assert.Equal(t, "a", rec.ID)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestCachingResolver_BackfillsFasterTiers(t *testing.T) {
	source := ports.ResolverFunc(func(ctx context.Context, id string) (*concept.Record, error) {
		t.Errorf("source should not be called for %s", id)
		return nil, nil
	})
	fast := cache.NewMemoryCache(100, 1<<20, nil)
	slow := cache.NewMemoryCache(100, 1<<20, nil)
	require.NoError(t, slow.Set(context.Background(), record("a"), time.Minute))

	r := catalogue.NewCachingResolver(source, time.Minute, nil, nil,
		catalogue.Tier{Name: "memory", Cache: fast},
		catalogue.Tier{Name: "dynamodb", Cache: slow},
	)

	_, err := r.Resolve(context.Background(), "a")
	require.NoError(t, err)

	_, ok, _ := fast.Get(context.Background(), "a")
	assert.True(t, ok)
}

func TestCachingResolver_FailuresAreNotCached(t *testing.T) {
	var calls atomic.Int32
	source := ports.ResolverFunc(func(ctx context.Context, id string) (*concept.Record, error) {
		calls.Add(1)
		return nil, catalogue.ErrUnresolvable
	})
	r := catalogue.NewCachingResolver(source, time.Minute, nil, nil,
		catalogue.Tier{Name: "memory", Cache: cache.NewMemoryCache(100, 1<<20, nil)})

	for i := 0; i < 2; i++ {
		_, err := r.Resolve(context.Background(), "a")
		assert.ErrorIs(t, err, catalogue.ErrUnresolvable)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestCachingResolver_CollapsesConcurrentLookups(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	source := ports.ResolverFunc(func(ctx context.Context, id string) (*concept.Record, error) {
		calls.Add(1)
		<-release
		return record(id), nil
	})
	r := catalogue.NewCachingResolver(source, time.Minute, nil, nil)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := r.Resolve(context.Background(), "a")
			assert.NoError(t, err)
			assert.Equal(t, "a", rec.ID)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCachingResolver_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	source := ports.ResolverFunc(func(ctx context.Context, id string) (*concept.Record, error) {
		<-release
		return record(id), nil
	})
	r := catalogue.NewCachingResolver(source, time.Minute, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx, "a")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Resolve did not return after cancellation")
	}
}
