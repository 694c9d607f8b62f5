// Package chunker turns an unbounded byte stream into fixed-size chunks and
// hands them to a pluggable handler.
//
// The ChunkedWriter is a write-only sink: bytes accumulate in a fixed-capacity
// buffer and every time the buffer fills (or the writer is closed) the chunk
// is passed to the Handler. The handler may return a buffer for the writer to
// reuse, which bounds allocations for long streams.
package chunker

import (
	"context"

	"github.com/blobkit/s3stream/errors"
)

// Handler consumes completed chunks.
//
// Open is called exactly once, before the first chunk is delivered. Write is
// called once per chunk, in production order; ownership of the chunk
// transfers to the handler for the duration of the call, and the returned
// slice (if non-nil) transfers back to the writer for reuse. Close is called
// exactly once, after the last chunk.
type Handler interface {
	Open(ctx context.Context) error
	Write(ctx context.Context, chunk []byte) ([]byte, error)
	Close(ctx context.Context) error
}

// ChunkedWriter accumulates writes into fixed-size chunks and dispatches them
// to a Handler. It implements io.WriteCloser; reads are not supported.
//
// ChunkedWriter is not safe for concurrent use. A single producer writes and
// closes it.
type ChunkedWriter struct {
	ctx       context.Context
	handler   Handler
	chunkSize int

	buf    []byte
	opened bool
	closed bool
}

// NewChunkedWriter creates a writer that cuts the incoming stream into chunks
// of chunkSize bytes. The handler's Open hook is deferred until the first
// flush, so constructing a writer has no side effects if nothing is written.
func NewChunkedWriter(ctx context.Context, handler Handler, chunkSize int) *ChunkedWriter {
	return &ChunkedWriter{
		ctx:       ctx,
		handler:   handler,
		chunkSize: chunkSize,
		buf:       make([]byte, 0, chunkSize),
	}
}

// Write appends p into the current chunk, flushing every time the chunk
// reaches capacity. It never returns a short count without an error.
func (w *ChunkedWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.NewError("write", errors.ErrStreamClosed)
	}

	written := 0
	for len(p) > 0 {
		free := w.chunkSize - len(w.buf)
		n := len(p)
		if n > free {
			n = free
		}
		w.buf = append(w.buf, p[:n]...)
		p = p[n:]
		written += n

		if len(w.buf) == w.chunkSize {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// Read is unsupported; the writer is a write-only abstraction.
func (w *ChunkedWriter) Read(p []byte) (int, error) {
	return 0, errors.NewError("read", errors.ErrUnsupportedOperation)
}

// Flush dispatches the current partial chunk to the handler. Flushing an
// empty buffer is a no-op.
func (w *ChunkedWriter) Flush() error {
	if w.closed {
		return errors.NewError("flush", errors.ErrStreamClosed)
	}
	if len(w.buf) == 0 {
		return nil
	}
	return w.flush()
}

// Close flushes the final chunk, even when it is empty or shorter than the
// chunk size, and then invokes the handler's Close hook. An empty stream still
// produces one Open, one empty-chunk Write and one Close, matching
// "create an empty object" semantics.
func (w *ChunkedWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushFinal(); err != nil {
		return err
	}
	if err := w.handler.Close(w.ctx); err != nil {
		return err
	}
	return nil
}

// flush hands the current chunk to the handler and installs the replacement
// buffer: the handler's recycled buffer if it returned one, a fresh
// allocation otherwise.
func (w *ChunkedWriter) flush() error {
	if !w.opened {
		if err := w.handler.Open(w.ctx); err != nil {
			return err
		}
		w.opened = true
	}

	recycled, err := w.handler.Write(w.ctx, w.buf)
	if err != nil {
		return err
	}
	if recycled != nil && cap(recycled) >= w.chunkSize {
		w.buf = recycled[:0]
	} else {
		w.buf = make([]byte, 0, w.chunkSize)
	}
	return nil
}

// flushFinal is the closing flush: the pending partial chunk is dispatched,
// and a zero-byte stream still opens the session and dispatches one empty
// chunk. A stream that ended exactly on a chunk boundary dispatches nothing.
func (w *ChunkedWriter) flushFinal() error {
	if w.opened && len(w.buf) == 0 {
		w.buf = nil
		return nil
	}
	if !w.opened {
		if err := w.handler.Open(w.ctx); err != nil {
			return err
		}
		w.opened = true
	}

	_, err := w.handler.Write(w.ctx, w.buf)
	if err != nil {
		return err
	}
	w.buf = nil
	return nil
}
