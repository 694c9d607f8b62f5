// Package errors provides error types and handling for streaming S3 uploads.
package errors

import (
	"errors"
	"fmt"
)

// Error represents an upload operation error with context about the operation
// that failed. It wraps the underlying AWS SDK error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "streamUpload", "uploadPart")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key (if applicable)
	Key string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3stream.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3stream.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3stream.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3stream.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for upload pipeline failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidConfig indicates that stream options are invalid
	// (e.g., a part size below the S3 multipart minimum)
	ErrInvalidConfig = errors.New("s3stream: invalid configuration")

	// ErrStreamClosed indicates a write or flush on an already closed stream
	ErrStreamClosed = errors.New("s3stream: stream closed")

	// ErrUnsupportedOperation indicates an operation the write-only stream
	// does not support, such as reading
	ErrUnsupportedOperation = errors.New("s3stream: unsupported operation")

	// ErrIncompleteUpload indicates that one or more part uploads failed and
	// the multipart upload cannot be completed
	ErrIncompleteUpload = errors.New("s3stream: incomplete upload")

	// ErrPoolClosed indicates an operation on a closed client pool
	ErrPoolClosed = errors.New("s3stream: client pool closed")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3stream: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3stream: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3stream: invalid object key")
)
