// Package s3types provides shared type definitions for the s3stream module.
package s3types

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/sirupsen/logrus"
)

// Default and limit values for streaming uploads.
const (
	// MinPartSize is the minimum part size accepted by the S3 multipart
	// upload API for every part except the last one (5 MiB).
	MinPartSize = 5 * 1024 * 1024

	// DefaultPartSize is the part size used when none is configured.
	DefaultPartSize = MinPartSize

	// DefaultMaxWorkers is the number of concurrent part uploads used by the
	// pipelined strategy when none is configured.
	DefaultMaxWorkers = 8

	// DefaultPoolSize is the maximum number of idle clients kept by the
	// client pool.
	DefaultPoolSize = 10

	// DefaultPoolTTL is the age after which an idle pooled client is
	// discarded and replaced.
	DefaultPoolTTL = 5 * time.Minute

	// DefaultPoolRefreshInterval is how often the whole client pool is
	// replaced to force renewal of long-lived transport state.
	DefaultPoolRefreshInterval = 24 * time.Hour
)

// StorageClass represents the S3 storage class for objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the default S3 storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassReducedRedundancy provides reduced redundancy storage
	StorageClassReducedRedundancy StorageClass = "REDUCED_REDUNDANCY"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassOneZoneIA provides one zone infrequent access storage
	StorageClassOneZoneIA StorageClass = "ONEZONE_IA"

	// StorageClassIntelligentTiering provides intelligent tiering storage
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"
)

// ObjectACL represents the access control list for S3 objects.
type ObjectACL string

// Predefined object ACLs
const (
	// ACLPrivate grants private access (default)
	ACLPrivate ObjectACL = "private"

	// ACLPublicRead grants public read access
	ACLPublicRead ObjectACL = "public-read"

	// ACLAuthenticatedRead grants authenticated users read access
	ACLAuthenticatedRead ObjectACL = "authenticated-read"

	// ACLOwnerFullControl grants bucket owner full control
	ACLOwnerFullControl ObjectACL = "bucket-owner-full-control"
)

// Part is one numbered piece of a multipart upload together with the
// integrity metadata the service assigned to it.
type Part struct {
	// Number is the 1-based part number, assigned in chunk-creation order
	Number int32

	// ETag is the entity tag returned by the service for this part
	ETag string

	// Size is the part size in bytes
	Size int64
}

// UploadResult contains the outcome of a completed streaming upload.
type UploadResult struct {
	// Key is the S3 object key
	Key string

	// ETag is the entity tag of the assembled object
	ETag string

	// Size is the total number of bytes uploaded
	Size int64

	// Parts is the number of parts the object was uploaded in
	Parts int

	// Duration is how long the upload took
	Duration time.Duration
}

// ClientConfig holds client-level configuration applied via Option functions.
type ClientConfig struct {
	// Region is the AWS region
	Region string

	// Endpoint is a custom S3 endpoint (LocalStack, MinIO, ...)
	Endpoint string

	// ForcePathStyle forces path-style URLs for S3-compatible services
	ForcePathStyle bool

	// MaxRetries is the AWS SDK retry budget for individual requests
	MaxRetries int

	// Timeout bounds individual HTTP requests; zero means no timeout
	Timeout time.Duration

	// PoolSize is the maximum number of idle clients kept by the client
	// pool; zero disables pooling entirely
	PoolSize int

	// PoolTTL is the maximum idle age of a pooled client
	PoolTTL time.Duration

	// PoolRefreshInterval is how often the whole pool is swapped for a
	// fresh one
	PoolRefreshInterval time.Duration

	// Logger receives structured events from the upload pipeline
	Logger logrus.FieldLogger

	// Filesystem is the filesystem abstraction used for file operations
	Filesystem fs.Filesystem

	// CustomAWSConfig overrides the default AWS configuration loading
	CustomAWSConfig *aws.Config
}

// Option configures the client.
type Option func(*ClientConfig)

// UploadConfig holds per-upload configuration applied via UploadOption
// functions.
type UploadConfig struct {
	// PartSize is the chunk size in bytes; every part except the last must
	// be at least MinPartSize
	PartSize int64

	// MaxWorkers bounds the number of concurrent part uploads
	MaxWorkers int

	// Serial forces the synchronous one-part-at-a-time strategy
	Serial bool

	// ContentType is the MIME type of the object
	ContentType string

	// Metadata contains user-defined object metadata
	Metadata map[string]string

	// StorageClass is the S3 storage class for the object
	StorageClass StorageClass

	// ACL is the canned ACL applied to the object
	ACL ObjectACL
}

// UploadOption configures a single streaming upload.
type UploadOption func(*UploadConfig)
