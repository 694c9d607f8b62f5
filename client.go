// Package s3stream provides client initialization and configuration.
//
// The Client composes the chunked-upload engine with a rotating pool of
// signed S3 clients behind a small, stream-oriented API.
package s3stream

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/sirupsen/logrus"

	"github.com/blobkit/s3stream/errors"
	"github.com/blobkit/s3stream/internal/pool"
	"github.com/blobkit/s3stream/internal/s3api"
	"github.com/blobkit/s3stream/s3types"
)

// Client is a streaming upload client for S3. It is safe for concurrent use.
type Client struct {
	// api is the S3 interface the engine talks to; in production it is
	// backed by the rotating client pool
	api s3api.S3API

	// rotator owns the client pool lifecycle; nil when the client was built
	// around an injected S3API
	rotator *pool.Rotator

	// clientCfg holds the resolved client-level configuration
	clientCfg *s3types.ClientConfig

	// logger receives structured events from the upload pipeline
	logger logrus.FieldLogger

	// fs is the filesystem abstraction for file operations
	fs fs.Filesystem
}

// New creates a streaming upload client with the provided options. AWS
// credentials are loaded through the default credential chain unless a custom
// AWS configuration is supplied.
//
// Example:
//
//	client, err := s3stream.New(
//	    s3stream.WithRegion("us-west-2"),
//	    s3stream.WithPoolSize(16),
//	)
func New(opts ...s3types.Option) (*Client, error) {
	clientCfg := &s3types.ClientConfig{
		MaxRetries:          3,
		PoolSize:            s3types.DefaultPoolSize,
		PoolTTL:             s3types.DefaultPoolTTL,
		PoolRefreshInterval: s3types.DefaultPoolRefreshInterval,
	}
	for _, opt := range opts {
		opt(clientCfg)
	}

	logger := clientCfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var cfg aws.Config
	var err error
	if clientCfg.CustomAWSConfig != nil {
		cfg = *clientCfg.CustomAWSConfig
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, errors.NewError("client initialization", err)
		}
	}

	if clientCfg.Region != "" {
		cfg.Region = clientCfg.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if clientCfg.MaxRetries > 0 {
		cfg.RetryMaxAttempts = clientCfg.MaxRetries
	}

	factory := clientFactory(cfg, clientCfg)

	buildPool := func() (*pool.Pool, error) {
		return pool.New(factory, clientCfg.PoolSize, clientCfg.PoolTTL, logger), nil
	}
	rotator, err := pool.NewRotator(buildPool, clientCfg.PoolRefreshInterval, logger)
	if err != nil {
		return nil, errors.NewError("client initialization", err)
	}

	filesystem := clientCfg.Filesystem
	if filesystem == nil {
		filesystem = billy.NewOSFS("/")
	}

	return &Client{
		api:       pool.NewAPI(rotator),
		rotator:   rotator,
		clientCfg: clientCfg,
		logger:    logger,
		fs:        filesystem,
	}, nil
}

// NewWithClient creates a client around a custom S3API implementation,
// bypassing the connection pool. This is primarily used for testing with
// mocked clients.
func NewWithClient(api s3api.S3API) *Client {
	return &Client{
		api:       api,
		clientCfg: &s3types.ClientConfig{},
		logger:    logrus.StandardLogger(),
		fs:        billy.NewOSFS("/"),
	}
}

// clientFactory returns a pool factory that constructs signed S3 clients.
// Each client owns its HTTP transport, and every client carries the
// strip-stale-auth signing hook.
func clientFactory(cfg aws.Config, clientCfg *s3types.ClientConfig) pool.Factory {
	return func() (*pool.Client, error) {
		httpClient := &http.Client{Timeout: clientCfg.Timeout}

		s3Opts := []func(*s3.Options){
			pool.StripStaleAuth(),
			func(o *s3.Options) {
				o.HTTPClient = httpClient
			},
		}
		if clientCfg.ForcePathStyle {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.UsePathStyle = true
			})
		}
		if clientCfg.Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(clientCfg.Endpoint)
			})
		}

		return pool.NewClient(s3.NewFromConfig(cfg, s3Opts...), httpClient), nil
	}
}

// SetFilesystem sets the filesystem implementation for the client.
// This is useful for testing or when the filesystem needs to be changed
// after creation.
func (c *Client) SetFilesystem(filesystem fs.Filesystem) {
	c.fs = filesystem
}

// Close stops pool rotation and tears down all pooled clients.
func (c *Client) Close() error {
	if c.rotator == nil {
		return nil
	}
	return c.rotator.Close()
}
