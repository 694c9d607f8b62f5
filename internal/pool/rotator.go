package pool

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Rotator periodically replaces the whole client pool with a fresh one
// sharing no state, forcing renewal of any long-lived transport security
// context. The outgoing pool is closed only after the swap completes, so
// in-flight acquires never race against a half-closed pool.
type Rotator struct {
	build    func() (*Pool, error)
	interval time.Duration
	logger   logrus.FieldLogger

	mu      sync.Mutex
	current *Pool
	closed  bool

	done     chan struct{}
	stopOnce sync.Once
}

// NewRotator builds the initial pool and starts the background rotation
// loop. A non-positive interval falls back to 24 hours.
func NewRotator(build func() (*Pool, error), interval time.Duration, logger logrus.FieldLogger) (*Rotator, error) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	initial, err := build()
	if err != nil {
		return nil, err
	}

	r := &Rotator{
		build:    build,
		interval: interval,
		logger:   logger,
		current:  initial,
		done:     make(chan struct{}),
	}
	go r.loop()

	return r, nil
}

// Current returns the active pool.
func (r *Rotator) Current() *Pool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Rotator) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.rotate()
		case <-r.done:
			return
		}
	}
}

// rotate swaps in a freshly built pool and drains the outgoing one
// asynchronously. If the build fails the current pool stays in place. A
// rotation that loses the race with Close discards the fresh pool instead of
// installing it, so shutdown never leaves an unclosed pool behind.
func (r *Rotator) rotate() {
	next, err := r.build()
	if err != nil {
		r.logger.WithError(err).Error("client pool rotation failed, keeping current pool")
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		next.Close()
		return
	}
	old := r.current
	r.current = next
	r.mu.Unlock()

	r.logger.WithField("pool_age", old.Age()).Info("rotated client pool")
	go old.Close()
}

// Close stops the rotation loop and closes the active pool. It is idempotent.
func (r *Rotator) Close() error {
	r.stopOnce.Do(func() {
		close(r.done)
	})

	r.mu.Lock()
	r.closed = true
	current := r.current
	r.mu.Unlock()

	return current.Close()
}
