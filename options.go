// Package s3stream provides functional options for configuring client and
// upload behavior. These options follow the functional options pattern for
// clean, composable configuration.
package s3stream

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/sirupsen/logrus"

	"github.com/blobkit/s3stream/s3types"
)

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of
// virtual-hosted style. This is required for S3-compatible services that
// don't support virtual hosting.
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithMaxRetries sets the maximum number of retry attempts the AWS SDK makes
// for an individual request. This is transport-level retrying; the engine
// itself never retries a failed part upload.
func WithMaxRetries(maxRetries int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout sets the timeout for individual HTTP requests.
// Default is no timeout (0). Values should be positive durations.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithPoolSize sets the maximum number of idle clients kept by the client
// pool. A size of zero disables pooling: every released client is closed
// immediately.
func WithPoolSize(size int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if size >= 0 {
			c.PoolSize = size
		}
	}
}

// WithPoolTTL sets the maximum idle age of a pooled client before it is
// discarded and replaced. Default is 5 minutes.
func WithPoolTTL(ttl time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if ttl > 0 {
			c.PoolTTL = ttl
		}
	}
}

// WithPoolRefreshInterval sets how often the whole client pool is replaced
// with a fresh one, forcing renewal of long-lived transport state.
// Default is 24 hours.
func WithPoolRefreshInterval(interval time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if interval > 0 {
			c.PoolRefreshInterval = interval
		}
	}
}

// WithLogger sets the logger that receives structured events from the upload
// pipeline, such as asynchronous part-upload failures and pool rotations.
func WithLogger(logger logrus.FieldLogger) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Logger = logger
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithPartSize sets the chunk size for a streaming upload. Every part except
// the last must be at least 5 MiB; smaller values fail at construction.
func WithPartSize(partSize int64) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithMaxWorkers bounds the number of concurrent part uploads for a
// streaming upload. Default is 8.
func WithMaxWorkers(maxWorkers int) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		if maxWorkers > 0 {
			c.MaxWorkers = maxWorkers
		}
	}
}

// WithSerialUpload forces the synchronous one-part-at-a-time strategy.
// Errors then surface directly from writes instead of at close.
func WithSerialUpload() s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		c.Serial = true
	}
}

// WithContentType sets the content type for the uploaded object.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets user-defined metadata for the uploaded object.
func WithMetadata(metadata map[string]string) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithStorageClass sets the storage class for the uploaded object.
func WithStorageClass(storageClass s3types.StorageClass) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		c.StorageClass = storageClass
	}
}

// WithACL sets the canned ACL for the uploaded object.
func WithACL(acl s3types.ObjectACL) s3types.UploadOption {
	return func(c *s3types.UploadConfig) {
		c.ACL = acl
	}
}
