// Package s3stream provides the streaming upload API.
package s3stream

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	s3errors "github.com/blobkit/s3stream/errors"
	"github.com/blobkit/s3stream/internal/chunker"
	"github.com/blobkit/s3stream/internal/pool"
	"github.com/blobkit/s3stream/internal/uploader"
	"github.com/blobkit/s3stream/internal/validation"
	"github.com/blobkit/s3stream/s3types"
)

// streamAffinity allocates pool affinity keys for producer-side requests.
// Each sink gets its own key so session calls and serial part uploads reuse
// one pooled client instead of building a new one per request.
var streamAffinity uint64

func nextStreamAffinity() uint64 {
	return atomic.AddUint64(&streamAffinity, 1)
}

const (
	// DefaultContentType is the content type used when detection fails
	DefaultContentType = "application/octet-stream"
)

// uploadHandler is the capability set shared by both upload strategies:
// the chunk-consumption hooks plus session introspection and teardown.
type uploadHandler interface {
	chunker.Handler

	UploadID() string
	Result() *s3types.UploadResult
	Abort(ctx context.Context) error
}

// Sink is a write-only stream whose bytes end up as one S3 object. Writing
// arbitrary byte sequences and then closing it uploads the object; closing
// with zero bytes written creates an empty object.
//
// A Sink is not safe for concurrent use: one producer writes and closes it.
// After a failed Close the caller should invoke Abort to release the
// server-side multipart state.
type Sink struct {
	*chunker.ChunkedWriter

	ctx      context.Context
	affinity uint64
	handler  uploadHandler
}

// UploadID returns the multipart upload id for this sink, or an empty string
// before the first chunk has been dispatched.
func (s *Sink) UploadID() string {
	return s.handler.UploadID()
}

// Result returns the outcome of the upload. It is nil until Close has
// succeeded.
func (s *Sink) Result() *s3types.UploadResult {
	return s.handler.Result()
}

// Abort tears down the multipart upload server-side, releasing storage held
// by parts that were uploaded before a failure.
func (s *Sink) Abort(ctx context.Context) error {
	return s.handler.Abort(pool.WithAffinity(ctx, s.affinity))
}

// StreamUpload returns a write-only sink that uploads everything written to
// it as a multipart object at bucket/key. The stream is cut into parts of the
// configured part size, and by default up to DefaultMaxWorkers parts upload
// concurrently; WithSerialUpload or WithMaxWorkers(1) selects the synchronous
// strategy instead.
//
// Construction fails fast with ErrInvalidConfig when the part size is below
// the 5 MiB multipart minimum. No request is made until the first part is
// dispatched, so an abandoned (never written, never closed) sink has no
// server-side footprint.
//
// Example:
//
//	sink, err := client.StreamUpload(ctx, "my-bucket", "backups/dump.tar")
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(sink, source); err != nil {
//	    sink.Abort(ctx)
//	    return err
//	}
//	if err := sink.Close(); err != nil {
//	    sink.Abort(ctx)
//	    return err
//	}
func (c *Client) StreamUpload(
	ctx context.Context,
	bucket, key string,
	opts ...s3types.UploadOption,
) (*Sink, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, err
	}

	cfg := &s3types.UploadConfig{
		PartSize:   s3types.DefaultPartSize,
		MaxWorkers: s3types.DefaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := validation.ValidateStreamConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.ContentType == "" {
		cfg.ContentType = contentTypeFromExtension(key)
	}

	// Every request the sink makes carries the stream's affinity key, so
	// the session calls and serial part uploads hit the client pool instead
	// of constructing a throwaway client each time.
	affinity := nextStreamAffinity()
	ctx = pool.WithAffinity(ctx, affinity)

	var handler uploadHandler
	if cfg.Serial || cfg.MaxWorkers == 1 {
		handler = uploader.NewSerial(c.api, bucket, key, cfg)
	} else {
		handler = uploader.NewPipelined(c.api, bucket, key, cfg, c.logger)
	}

	return &Sink{
		ChunkedWriter: chunker.NewChunkedWriter(ctx, handler, int(cfg.PartSize)),
		ctx:           ctx,
		affinity:      affinity,
		handler:       handler,
	}, nil
}

// Upload streams data from an io.Reader to S3 and blocks until the object is
// complete. On failure the multipart upload is aborted before the error is
// returned, so no orphaned server-side state is left behind.
func (c *Client) Upload(
	ctx context.Context,
	bucket, key string,
	reader io.Reader,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if reader == nil {
		return nil, s3errors.NewObjectError("upload", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("reader cannot be nil")
	}

	sink, err := c.StreamUpload(ctx, bucket, key, opts...)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(sink, reader); err != nil {
		c.abortQuietly(ctx, sink)
		return nil, s3errors.NewObjectError("upload", bucket, key, err)
	}
	if err := sink.Close(); err != nil {
		c.abortQuietly(ctx, sink)
		return nil, err
	}

	return sink.Result(), nil
}

// UploadFile uploads a file from the local filesystem to S3, sniffing the
// content type from the file's leading bytes when none is configured.
func (c *Client) UploadFile(
	ctx context.Context,
	bucket, key, path string,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if path == "" {
		return nil, s3errors.NewObjectError("uploadFile", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("filepath cannot be empty")
	}

	info, err := c.fs.Stat(path)
	if err != nil {
		return nil, s3errors.NewObjectError("uploadFile", bucket, key, err)
	}
	if info.IsDir() {
		return nil, s3errors.NewObjectError("uploadFile", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("filepath points to a directory, not a file")
	}

	file, err := c.fs.Open(path)
	if err != nil {
		return nil, s3errors.NewObjectError("uploadFile", bucket, key, err)
	}
	defer file.Close()

	// Caller-supplied options are applied after the sniffed default, so an
	// explicit WithContentType always wins.
	opts = append([]s3types.UploadOption{
		WithContentType(c.detectContentType(path)),
	}, opts...)

	return c.Upload(ctx, bucket, key, file, opts...)
}

// Put uploads byte data to S3 through the streaming engine. This is a
// convenience method for data that already fits in memory.
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, opts ...s3types.UploadOption) error {
	ct := DefaultContentType
	if mt := mimetype.Detect(data); mt != nil {
		ct = mt.String()
	}
	opts = append([]s3types.UploadOption{WithContentType(ct)}, opts...)

	_, err := c.Upload(ctx, bucket, key, bytes.NewReader(data), opts...)
	return err
}

// Abort aborts an in-progress multipart upload, releasing any parts the
// service has stored for it. Use it to clean up after a failed streaming
// upload when the Sink is no longer available.
func (c *Client) Abort(ctx context.Context, bucket, key, uploadID string) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return err
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return err
	}
	if uploadID == "" {
		return s3errors.NewObjectError("abort", bucket, key, s3errors.ErrInvalidInput).
			WithMessage("upload id cannot be empty")
	}

	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}
	ctx = pool.WithAffinity(ctx, nextStreamAffinity())
	if _, err := c.api.AbortMultipartUpload(ctx, input); err != nil {
		return s3errors.NewObjectError("abort", bucket, key, err)
	}
	return nil
}

// abortQuietly aborts a failed sink's upload, logging rather than returning
// the abort error so the original failure stays visible.
func (c *Client) abortQuietly(ctx context.Context, sink *Sink) {
	if err := sink.Abort(ctx); err != nil {
		c.logger.WithError(err).Warn("failed to abort multipart upload")
	}
}

// detectContentType determines the content type using mimetype where
// possible, falling back to extension-based lookup when the path cannot be
// read.
func (c *Client) detectContentType(path string) string {
	file, err := c.fs.Open(path)
	if err != nil {
		return contentTypeFromExtension(path)
	}
	defer file.Close()

	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	return contentTypeFromExtension(path)
}

// contentTypeFromExtension detects content type from the key or file
// extension.
func contentTypeFromExtension(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}
	return DefaultContentType
}
