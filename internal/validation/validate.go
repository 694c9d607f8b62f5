// Package validation provides centralized input validation logic.
// This includes bucket name validation, object key validation, and checks on
// streaming upload options.
//
// All user inputs are validated before any request is sent to the service.
package validation

import (
	"fmt"
	"net"
	"strings"
	"unicode"

	"github.com/blobkit/s3stream/errors"
	"github.com/blobkit/s3stream/s3types"
)

// ValidateBucketName validates that a bucket name is DNS-compliant according
// to AWS S3 rules. Returns ErrInvalidBucketName if the bucket name is invalid.
func ValidateBucketName(bucket string) error {
	if bucket == "" {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot be empty")
	}
	if len(bucket) < 3 || len(bucket) > 63 {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name must be between 3 and 63 characters")
	}
	if net.ParseIP(bucket) != nil {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot be formatted as an IP address")
	}

	for i, r := range bucket {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '.' || r == '-':
			if i == 0 || i == len(bucket)-1 {
				return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
					WithBucket(bucket).
					WithMessage("bucket name must begin and end with a letter or number")
			}
		default:
			return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
				WithBucket(bucket).
				WithMessage("bucket name can only contain lowercase letters, numbers, dots, and hyphens")
		}
	}
	if strings.Contains(bucket, "..") || strings.Contains(bucket, ".-") || strings.Contains(bucket, "-.") {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage("bucket name cannot contain adjacent periods or dash-period sequences")
	}

	return nil
}

// ValidateObjectKey validates that an object key is valid according to AWS S3
// rules. This includes preventing path traversal attacks and ensuring valid
// characters.
func ValidateObjectKey(key string) error {
	if key == "" {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot be empty")
	}
	if hasPathTraversal(key) {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot contain path traversal sequences")
	}
	if len(key) > 1024 {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage("object key cannot exceed 1024 characters")
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
				WithKey(key).
				WithMessage("object key cannot contain control characters")
		}
	}

	return nil
}

// ValidateStreamConfig validates per-upload streaming options. Part sizes
// below the service's multipart minimum fail fast here, before any request
// is made.
func ValidateStreamConfig(cfg *s3types.UploadConfig) error {
	if cfg.PartSize < s3types.MinPartSize {
		return errors.NewError("streamUpload", errors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf(
				"part size %d is below the multipart minimum of %d bytes",
				cfg.PartSize, s3types.MinPartSize,
			))
	}
	if cfg.MaxWorkers < 0 {
		return errors.NewError("streamUpload", errors.ErrInvalidConfig).
			WithMessage("max workers cannot be negative")
	}
	return nil
}

// hasPathTraversal reports whether the key contains dot-dot path segments.
func hasPathTraversal(key string) bool {
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return true
		}
	}
	return false
}
