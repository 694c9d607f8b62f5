// Package uploader implements the chunk-consumption strategies of the
// streaming upload engine: a serial baseline and a pipelined uploader that
// overlaps part uploads across a bounded number of workers.
//
// Both strategies implement chunker.Handler and share the multipart session
// plumbing in this file.
package uploader

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/blobkit/s3stream/errors"
	"github.com/blobkit/s3stream/internal/s3api"
	"github.com/blobkit/s3stream/s3types"
)

// session carries the state of one multipart upload: exactly one session per
// destination object per uploader instance.
type session struct {
	client s3api.S3API
	bucket string
	key    string
	cfg    *s3types.UploadConfig

	uploadID string
	started  time.Time
	result   *s3types.UploadResult
}

// start issues CreateMultipartUpload and records the returned upload id.
func (s *session) start(ctx context.Context) error {
	s.started = time.Now()

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}
	if s.cfg.ContentType != "" {
		input.ContentType = aws.String(s.cfg.ContentType)
	}
	if len(s.cfg.Metadata) > 0 {
		input.Metadata = s.cfg.Metadata
	}
	if s.cfg.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(s.cfg.StorageClass)
	}
	if s.cfg.ACL != "" {
		input.ACL = awstypes.ObjectCannedACL(s.cfg.ACL)
	}

	output, err := s.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return errors.NewObjectError("createMultipartUpload", s.bucket, s.key, err)
	}

	s.uploadID = aws.ToString(output.UploadId)
	return nil
}

// uploadPart uploads one numbered chunk and returns its part metadata.
func (s *session) uploadPart(ctx context.Context, number int32, chunk []byte) (s3types.Part, error) {
	input := &s3.UploadPartInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.key),
		UploadId:   aws.String(s.uploadID),
		PartNumber: aws.Int32(number),
		Body:       bytes.NewReader(chunk),
	}

	output, err := s.client.UploadPart(ctx, input)
	if err != nil {
		return s3types.Part{}, errors.NewObjectError("uploadPart", s.bucket, s.key, err)
	}

	return s3types.Part{
		Number: number,
		ETag:   aws.ToString(output.ETag),
		Size:   int64(len(chunk)),
	}, nil
}

// complete finalizes the multipart upload with the given parts. The slice
// must already be ordered by ascending part number with no gaps.
func (s *session) complete(ctx context.Context, parts []s3types.Part) error {
	completed := make([]awstypes.CompletedPart, 0, len(parts))
	var size int64
	for _, p := range parts {
		completed = append(completed, awstypes.CompletedPart{
			PartNumber: aws.Int32(p.Number),
			ETag:       aws.String(p.ETag),
		})
		size += p.Size
	}

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(s.uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: completed,
		},
	}

	output, err := s.client.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return errors.NewObjectError("completeMultipartUpload", s.bucket, s.key, err)
	}

	s.result = &s3types.UploadResult{
		Key:      s.key,
		ETag:     aws.ToString(output.ETag),
		Size:     size,
		Parts:    len(parts),
		Duration: time.Since(s.started),
	}
	return nil
}

// Abort tears down the multipart upload server-side. Calling it before the
// session started is a no-op.
func (s *session) Abort(ctx context.Context) error {
	if s.uploadID == "" {
		return nil
	}

	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(s.key),
		UploadId: aws.String(s.uploadID),
	}
	if _, err := s.client.AbortMultipartUpload(ctx, input); err != nil {
		return errors.NewObjectError("abortMultipartUpload", s.bucket, s.key, err)
	}
	return nil
}

// UploadID returns the service-assigned upload id, or an empty string before
// the session has started.
func (s *session) UploadID() string {
	return s.uploadID
}

// Result returns the outcome of the upload. It is nil until the session has
// been completed.
func (s *session) Result() *s3types.UploadResult {
	return s.result
}

// reorderParts sorts parts into ascending part-number order in place.
// Part numbers are a permutation of 1..N, so each part's own number is its
// destination index: repeatedly swapping the entry at position i into slot
// Number-1 until position i holds the correct part is O(N) time and O(1)
// space (a cycle sort over the permutation).
func reorderParts(parts []s3types.Part) {
	for i := range parts {
		for parts[i].Number != int32(i+1) {
			j := parts[i].Number - 1
			parts[i], parts[j] = parts[j], parts[i]
		}
	}
}
