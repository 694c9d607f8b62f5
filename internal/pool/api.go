package pool

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/blobkit/s3stream/internal/s3api"
)

// Source supplies the active pool. Both *Pool (fixed) and *Rotator
// (periodically replaced) satisfy it.
type Source interface {
	Current() *Pool
}

// Current returns the pool itself, letting a plain pool act as a Source.
func (p *Pool) Current() *Pool { return p }

// API adapts a pool source into the s3api.S3API interface consumed by the
// uploaders: every call acquires a client under the caller's affinity key,
// performs the request, and releases the client back to the pool that
// supplied it.
type API struct {
	source Source
}

// NewAPI creates the pool-backed S3 API.
func NewAPI(source Source) *API {
	return &API{source: source}
}

// CreateMultipartUpload initiates a multipart upload on a pooled client.
func (a *API) CreateMultipartUpload(
	ctx context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	p := a.source.Current()
	client, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.CreateMultipartUpload(ctx, params, optFns...)
	p.Release(ctx, client)
	return out, err
}

// UploadPart uploads a part on a pooled client.
func (a *API) UploadPart(
	ctx context.Context,
	params *s3.UploadPartInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	p := a.source.Current()
	client, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.UploadPart(ctx, params, optFns...)
	p.Release(ctx, client)
	return out, err
}

// CompleteMultipartUpload completes a multipart upload on a pooled client.
func (a *API) CompleteMultipartUpload(
	ctx context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	p := a.source.Current()
	client, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.CompleteMultipartUpload(ctx, params, optFns...)
	p.Release(ctx, client)
	return out, err
}

// AbortMultipartUpload aborts a multipart upload on a pooled client.
func (a *API) AbortMultipartUpload(
	ctx context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	p := a.source.Current()
	client, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.AbortMultipartUpload(ctx, params, optFns...)
	p.Release(ctx, client)
	return out, err
}

// Ensure the pool-backed adapter implements the engine's S3 interface
var _ s3api.S3API = (*API)(nil)
