// Package pool manages reusable, request-signing S3 clients for concurrent
// upload tasks.
//
// Clients are keyed by the affinity of the calling task (see WithAffinity) so
// a task acquiring repeatedly tends to get the same client back without any
// connection setup cost. Idle clients expire after a TTL, the pool is bounded
// in size, and a Rotator can periodically swap the whole pool for a fresh one
// to force renewal of long-lived transport state.
package pool

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
)

// Client is a pooled S3 client together with the HTTP transport it owns.
// Closing a pooled client tears down the transport's idle connections.
type Client struct {
	*s3.Client

	httpClient *http.Client
}

// NewClient wraps an S3 client and its transport for pooling.
func NewClient(s3Client *s3.Client, httpClient *http.Client) *Client {
	return &Client{Client: s3Client, httpClient: httpClient}
}

func (c *Client) close() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}

// Factory constructs a new signed client. Implementations must attach the
// signing hook (see StripStaleAuth) so reused transports never resend stale
// signed headers.
type Factory func() (*Client, error)

// entry is one pooled client. Invariant: at most one entry per affinity key.
type entry struct {
	client   *Client
	lastUsed time.Time
}

// Pool is an affinity-keyed client pool with TTL expiry and a bounded size.
type Pool struct {
	mu      sync.Mutex
	entries map[uint64]*entry
	factory Factory
	maxSize int
	ttl     time.Duration
	created time.Time
	closed  bool
	logger  logrus.FieldLogger
}

// New creates a pool. maxSize zero disables pooling entirely: every released
// client is closed immediately. A non-positive ttl falls back to 5 minutes.
func New(factory Factory, maxSize int, ttl time.Duration, logger logrus.FieldLogger) *Pool {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pool{
		entries: make(map[uint64]*entry),
		factory: factory,
		maxSize: maxSize,
		ttl:     ttl,
		created: time.Now(),
		logger:  logger,
	}
}

// Acquire returns a client for the calling task. A pooled entry under the
// task's affinity key is reused when it is younger than the TTL; otherwise
// the expired client is closed and a fresh one constructed. Acquiring from a
// closed pool constructs a throwaway client rather than reusing closed state.
func (p *Pool) Acquire(ctx context.Context) (*Client, error) {
	key, ok := AffinityFrom(ctx)
	if !ok {
		return p.factory()
	}

	var stale *Client

	p.mu.Lock()
	if !p.closed {
		if e := p.entries[key]; e != nil {
			delete(p.entries, key)
			if time.Since(e.lastUsed) <= p.ttl {
				p.mu.Unlock()
				return e.client, nil
			}
			stale = e.client
		}
	}
	p.mu.Unlock()

	// Close the expired predecessor outside the lock; socket teardown must
	// not block other acquirers.
	if stale != nil {
		stale.close()
	}

	return p.factory()
}

// Release returns a client to the pool under the calling task's affinity key.
// Expired entries and at most one victim beyond the maximum size are evicted
// and closed asynchronously. With pooling disabled (maxSize zero), without an
// affinity key, or after Close, the client is closed immediately instead.
func (p *Pool) Release(ctx context.Context, client *Client) {
	if client == nil {
		return
	}

	key, ok := AffinityFrom(ctx)

	p.mu.Lock()
	if p.closed || p.maxSize == 0 || !ok {
		p.mu.Unlock()
		client.close()
		return
	}

	var victims []*Client
	if old := p.entries[key]; old != nil {
		victims = append(victims, old.client)
	}
	p.entries[key] = &entry{client: client, lastUsed: time.Now()}

	now := time.Now()
	for k, e := range p.entries {
		if k != key && now.Sub(e.lastUsed) > p.ttl {
			victims = append(victims, e.client)
			delete(p.entries, k)
		}
	}
	if len(p.entries) > p.maxSize {
		if k, found := p.oldestLocked(key); found {
			victims = append(victims, p.entries[k].client)
			delete(p.entries, k)
		}
	}
	p.mu.Unlock()

	for _, v := range victims {
		go v.close()
	}
	if len(victims) > 0 {
		p.logger.WithField("evicted", len(victims)).Debug("evicted pooled clients")
	}
}

// oldestLocked returns the key of the least recently used entry, skipping the
// given key. Callers must hold p.mu.
func (p *Pool) oldestLocked(skip uint64) (uint64, bool) {
	var (
		oldestKey uint64
		oldestAt  time.Time
		found     bool
	)
	for k, e := range p.entries {
		if k == skip {
			continue
		}
		if !found || e.lastUsed.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.lastUsed
			found = true
		}
	}
	return oldestKey, found
}

// Close marks the pool closed and tears down every pooled client. It is
// idempotent; subsequent Acquire calls construct throwaway clients and
// subsequent Release calls close their argument.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	clients := make([]*Client, 0, len(p.entries))
	for _, e := range p.entries {
		clients = append(clients, e.client)
	}
	p.entries = make(map[uint64]*entry)
	p.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	return nil
}

// Age reports how long ago the pool was created. The Rotator uses it to
// decide when the pool is stale.
func (p *Pool) Age() time.Duration {
	return time.Since(p.created)
}

// Size returns the number of idle pooled clients.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
