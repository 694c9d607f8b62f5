package uploader

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/blobkit/s3stream/errors"
	"github.com/blobkit/s3stream/internal/pool"
	"github.com/blobkit/s3stream/internal/s3api"
	"github.com/blobkit/s3stream/s3types"
)

// completion is one finished part upload together with the chunk buffer it
// consumed, handed back to the producer for reuse.
type completion struct {
	part s3types.Part
	buf  []byte
}

// Pipelined overlaps up to maxWorkers concurrent part uploads while bounding
// memory through buffer reuse and guaranteeing a correctly ordered final part
// list.
//
// Part numbers are assigned in Write-call order by a single producer;
// completions arrive in arbitrary order on the completion channel and are
// reconciled once, at Close. The completion channel is buffered to maxWorkers,
// so worker sends never block and the producer's receive in Write is the only
// backpressure point.
type Pipelined struct {
	session
	logger     logrus.FieldLogger
	maxWorkers int

	// nextPart and failed are touched only by the producer; pending and
	// finished are shared with the workers and accessed atomically.
	nextPart int32
	failed   bool
	pending  int32
	finished int32

	completions chan completion
	closeOnce   sync.Once
	sendMu      sync.RWMutex
	chanClosed  bool
	wg          sync.WaitGroup

	collected []s3types.Part
}

// NewPipelined creates the pipelined upload strategy for one destination
// object. maxWorkers bounds the number of in-flight part uploads.
func NewPipelined(
	client s3api.S3API,
	bucket, key string,
	cfg *s3types.UploadConfig,
	logger logrus.FieldLogger,
) *Pipelined {
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = s3types.DefaultMaxWorkers
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Pipelined{
		session: session{
			client: client,
			bucket: bucket,
			key:    key,
			cfg:    cfg,
		},
		logger:      logger,
		maxWorkers:  maxWorkers,
		completions: make(chan completion, maxWorkers),
	}
}

// Open starts the multipart upload session.
func (u *Pipelined) Open(ctx context.Context) error {
	return u.start(ctx)
}

// Write assigns the next part number to the chunk and dispatches its upload
// to a concurrent task. When the in-flight count has reached maxWorkers, or a
// completed task is waiting to be drained, Write then collects one completion
// before returning; the buffer it carries is handed back to the caller for
// recycling. This receive is the only point where the producer blocks, and it
// keeps the number of in-flight uploads at or below maxWorkers.
//
// Worker failures do not surface here; they close the completion channel and
// are reported at Close. Once the producer observes the closed channel it
// stops dispatching: the upload can no longer complete, and spawning more
// workers would break the in-flight bound.
func (u *Pipelined) Write(ctx context.Context, chunk []byte) ([]byte, error) {
	if u.failed {
		return nil, nil
	}

	u.nextPart++
	number := u.nextPart

	inFlight := atomic.AddInt32(&u.pending, 1)
	u.wg.Add(1)
	go u.worker(ctx, number, chunk)

	var recycled []byte
	if inFlight >= int32(u.maxWorkers) || atomic.LoadInt32(&u.finished) > int32(len(u.collected)) {
		c, ok := <-u.completions
		if !ok {
			u.failed = true
			return nil, nil
		}
		atomic.AddInt32(&u.pending, -1)
		u.collected = append(u.collected, c.part)
		recycled = c.buf
	}

	return recycled, nil
}

// worker uploads one part and delivers its completion. On failure it closes
// the completion channel so the drain loop in Close observes the shortfall
// instead of hanging forever.
func (u *Pipelined) worker(ctx context.Context, number int32, chunk []byte) {
	defer u.wg.Done()

	// Affinity is a reuse hint for the client pool, not a correctness
	// requirement: worker slots are offset from the stream's own key so the
	// producer and the workers each tend to get their client back. A key
	// collision with another stream only costs a client rebuild.
	base, _ := pool.AffinityFrom(ctx)
	ctx = pool.WithAffinity(ctx, base+1+uint64(number-1)%uint64(u.maxWorkers))

	part, err := u.uploadPart(ctx, number, chunk)
	if err != nil {
		u.logger.WithFields(logrus.Fields{
			"bucket":      u.bucket,
			"key":         u.key,
			"upload_id":   u.uploadID,
			"part_number": number,
		}).WithError(err).Error("part upload failed")
		u.closeCompletions()
		return
	}

	atomic.AddInt32(&u.finished, 1)
	u.send(completion{part: part, buf: chunk})
}

// send delivers a completion unless the channel has been closed by a failed
// worker. The channel is buffered to maxWorkers and in-flight uploads never
// exceed that bound, so the send cannot block while the lock is held.
func (u *Pipelined) send(c completion) {
	u.sendMu.RLock()
	defer u.sendMu.RUnlock()
	if !u.chanClosed {
		u.completions <- c
	}
}

// closeCompletions closes the completion channel exactly once; further calls
// are no-ops.
func (u *Pipelined) closeCompletions() {
	u.closeOnce.Do(func() {
		u.sendMu.Lock()
		u.chanClosed = true
		close(u.completions)
		u.sendMu.Unlock()
	})
}

// Close drains the completion channel until every dispatched part has been
// collected, reorders the parts into ascending part-number order, and
// completes the multipart upload. If the channel closes before all parts
// arrive, a worker failed and ErrIncompleteUpload is returned rather than
// submitting a truncated part list. In both outcomes Close returns only
// after every dispatched worker has finished, so no upload can still be
// reading a chunk buffer the caller reuses afterwards.
func (u *Pipelined) Close(ctx context.Context) error {
	incomplete := u.failed
	for !incomplete && len(u.collected) < int(u.nextPart) {
		c, ok := <-u.completions
		if !ok {
			incomplete = true
			break
		}
		atomic.AddInt32(&u.pending, -1)
		u.collected = append(u.collected, c.part)
	}
	u.closeCompletions()
	u.wg.Wait()

	if incomplete {
		return errors.NewObjectError("streamUpload", u.bucket, u.key, errors.ErrIncompleteUpload)
	}

	reorderParts(u.collected)
	return u.complete(ctx, u.collected)
}
