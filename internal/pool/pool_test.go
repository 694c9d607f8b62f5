package pool

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingTransport records how many times its idle connections were torn
// down, which is how a pooled client observes being closed.
type countingTransport struct {
	closes int32
}

func (t *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, http.ErrNotSupported
}

func (t *countingTransport) CloseIdleConnections() {
	atomic.AddInt32(&t.closes, 1)
}

func (t *countingTransport) closeCount() int32 {
	return atomic.LoadInt32(&t.closes)
}

// clientTracker is a Factory that remembers the transport behind every
// client it built, in construction order.
type clientTracker struct {
	mu         sync.Mutex
	transports []*countingTransport
}

func (ct *clientTracker) factory() (*Client, error) {
	transport := &countingTransport{}
	ct.mu.Lock()
	ct.transports = append(ct.transports, transport)
	ct.mu.Unlock()
	return NewClient(nil, &http.Client{Transport: transport}), nil
}

func (ct *clientTracker) built() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return len(ct.transports)
}

func (ct *clientTracker) transport(i int) *countingTransport {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.transports[i]
}

func newTestPool(t *testing.T, maxSize int, ttl time.Duration) (*Pool, *clientTracker) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	tracker := &clientTracker{}
	return New(tracker.factory, maxSize, ttl, logger), tracker
}

func TestPool_ReusesClientWithinTTL(t *testing.T) {
	p, tracker := newTestPool(t, 4, time.Minute)
	defer p.Close()

	ctx := WithAffinity(context.Background(), 1)

	first, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(ctx, first)
	require.Equal(t, 1, p.Size())

	second, err := p.Acquire(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, tracker.built())
	assert.Equal(t, 0, p.Size(), "acquire checks the entry out of the pool")
}

func TestPool_DistinctAffinityKeysGetDistinctClients(t *testing.T) {
	p, tracker := newTestPool(t, 4, time.Minute)
	defer p.Close()

	ctxA := WithAffinity(context.Background(), 1)
	ctxB := WithAffinity(context.Background(), 2)

	a, err := p.Acquire(ctxA)
	require.NoError(t, err)
	b, err := p.Acquire(ctxB)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, tracker.built())

	p.Release(ctxA, a)
	p.Release(ctxB, b)
	assert.Equal(t, 2, p.Size())
}

func TestPool_ExpiredClientReplacedAndClosed(t *testing.T) {
	p, tracker := newTestPool(t, 4, 10*time.Millisecond)
	defer p.Close()

	ctx := WithAffinity(context.Background(), 1)

	first, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(ctx, first)

	time.Sleep(30 * time.Millisecond)

	second, err := p.Acquire(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, tracker.built())
	assert.Equal(t, int32(1), tracker.transport(0).closeCount(),
		"expired client is torn down exactly once")
	assert.Equal(t, int32(0), tracker.transport(1).closeCount())
}

func TestPool_NoAffinityBypassesPool(t *testing.T) {
	p, tracker := newTestPool(t, 4, time.Minute)
	defer p.Close()

	ctx := context.Background()

	first, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(ctx, first)

	second, err := p.Acquire(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, tracker.built())
	assert.Equal(t, 0, p.Size(), "untagged clients are never pooled")
	assert.Equal(t, int32(1), tracker.transport(0).closeCount(),
		"releasing an untagged client closes it immediately")
}

func TestPool_ZeroSizeDisablesPooling(t *testing.T) {
	p, tracker := newTestPool(t, 0, time.Minute)
	defer p.Close()

	ctx := WithAffinity(context.Background(), 1)

	client, err := p.Acquire(ctx)
	require.NoError(t, err)
	p.Release(ctx, client)

	assert.Equal(t, 0, p.Size())
	assert.Equal(t, int32(1), tracker.transport(0).closeCount())

	_, err = p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tracker.built())
}

func TestPool_EvictsOldestBeyondMaxSize(t *testing.T) {
	p, tracker := newTestPool(t, 2, time.Minute)
	defer p.Close()

	clients := make(map[uint64]*Client)
	for key := uint64(1); key <= 3; key++ {
		ctx := WithAffinity(context.Background(), key)
		c, err := p.Acquire(ctx)
		require.NoError(t, err)
		clients[key] = c
	}

	for key := uint64(1); key <= 3; key++ {
		p.Release(WithAffinity(context.Background(), key), clients[key])
		// Keep lastUsed ordering unambiguous.
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 2, p.Size())
	// Key 1 was released first, so it is the eviction victim. Victims are
	// closed asynchronously.
	assert.Eventually(t, func() bool {
		return tracker.transport(0).closeCount() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), tracker.transport(1).closeCount())
	assert.Equal(t, int32(0), tracker.transport(2).closeCount())
}

func TestPool_ReleaseOverSameKeyEvictsPrevious(t *testing.T) {
	p, tracker := newTestPool(t, 4, time.Minute)
	defer p.Close()

	ctx := WithAffinity(context.Background(), 1)

	first, err := p.factory()
	require.NoError(t, err)
	second, err := p.factory()
	require.NoError(t, err)

	p.Release(ctx, first)
	p.Release(ctx, second)

	assert.Equal(t, 1, p.Size())
	assert.Eventually(t, func() bool {
		return tracker.transport(0).closeCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPool_ReleaseNilIsNoop(t *testing.T) {
	p, _ := newTestPool(t, 4, time.Minute)
	defer p.Close()

	p.Release(WithAffinity(context.Background(), 1), nil)
	assert.Equal(t, 0, p.Size())
}

func TestPool_Close(t *testing.T) {
	p, tracker := newTestPool(t, 4, time.Minute)

	ctx1 := WithAffinity(context.Background(), 1)
	ctx2 := WithAffinity(context.Background(), 2)
	c1, err := p.Acquire(ctx1)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx2)
	require.NoError(t, err)
	p.Release(ctx1, c1)
	p.Release(ctx2, c2)

	require.NoError(t, p.Close())
	assert.Equal(t, 0, p.Size())
	assert.Equal(t, int32(1), tracker.transport(0).closeCount())
	assert.Equal(t, int32(1), tracker.transport(1).closeCount())

	// Idempotent.
	require.NoError(t, p.Close())
	assert.Equal(t, int32(1), tracker.transport(0).closeCount())

	// A closed pool still serves throwaway clients and closes releases.
	after, err := p.Acquire(ctx1)
	require.NoError(t, err)
	p.Release(ctx1, after)
	assert.Equal(t, 0, p.Size())
	assert.Equal(t, int32(1), tracker.transport(2).closeCount())
}

func TestPool_Age(t *testing.T) {
	p, _ := newTestPool(t, 4, time.Minute)
	defer p.Close()

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, p.Age(), time.Duration(0))
}

func TestAffinityContext(t *testing.T) {
	_, ok := AffinityFrom(context.Background())
	assert.False(t, ok)

	ctx := WithAffinity(context.Background(), 42)
	key, ok := AffinityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, uint64(42), key)
}
