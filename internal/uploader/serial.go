package uploader

import (
	"context"

	"github.com/blobkit/s3stream/internal/s3api"
	"github.com/blobkit/s3stream/s3types"
)

// Serial uploads each chunk synchronously as it arrives. Parts accumulate in
// dispatch order, so no reordering is needed at close. Any failure surfaces
// immediately to the caller.
type Serial struct {
	session
	parts []s3types.Part
}

// NewSerial creates the serial upload strategy for one destination object.
func NewSerial(client s3api.S3API, bucket, key string, cfg *s3types.UploadConfig) *Serial {
	return &Serial{
		session: session{
			client: client,
			bucket: bucket,
			key:    key,
			cfg:    cfg,
		},
	}
}

// Open starts the multipart upload session.
func (u *Serial) Open(ctx context.Context) error {
	return u.start(ctx)
}

// Write uploads the chunk as the next part and returns the chunk for
// recycling; the upload has already completed, so the buffer is free.
func (u *Serial) Write(ctx context.Context, chunk []byte) ([]byte, error) {
	part, err := u.uploadPart(ctx, int32(len(u.parts)+1), chunk)
	if err != nil {
		return nil, err
	}
	u.parts = append(u.parts, part)
	return chunk, nil
}

// Close completes the multipart upload with the accumulated parts.
// Completion order equals dispatch order for the serial strategy, so the
// part list is already correctly ordered.
func (u *Serial) Close(ctx context.Context) error {
	return u.complete(ctx, u.parts)
}
