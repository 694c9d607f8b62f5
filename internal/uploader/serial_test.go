package uploader

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3errors "github.com/blobkit/s3stream/errors"
	"github.com/blobkit/s3stream/internal/testutil"
	"github.com/blobkit/s3stream/s3types"
)

// partRecorder is a mock UploadPart that records part numbers and bodies.
type partRecorder struct {
	mu      sync.Mutex
	numbers []int32
	bodies  [][]byte
}

func (r *partRecorder) record(input *s3.UploadPartInput) (*s3.UploadPartOutput, error) {
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.numbers = append(r.numbers, aws.ToInt32(input.PartNumber))
	r.bodies = append(r.bodies, body)
	r.mu.Unlock()

	etag := "etag-" + string(rune('0'+aws.ToInt32(input.PartNumber)))
	return &s3.UploadPartOutput{ETag: aws.String(etag)}, nil
}

func TestSerial_UploadFlow(t *testing.T) {
	ctx := context.Background()
	recorder := &partRecorder{}

	var completedParts []int32
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(ctx context.Context, input *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			assert.Equal(t, "test-bucket", aws.ToString(input.Bucket))
			assert.Equal(t, "test-key", aws.ToString(input.Key))
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(ctx context.Context, input *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			assert.Equal(t, "upload-1", aws.ToString(input.UploadId))
			return recorder.record(input)
		},
		CompleteMultipartUploadFunc: func(ctx context.Context, input *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			for _, p := range input.MultipartUpload.Parts {
				completedParts = append(completedParts, aws.ToInt32(p.PartNumber))
			}
			return &s3.CompleteMultipartUploadOutput{ETag: aws.String("final-etag")}, nil
		},
	}

	u := NewSerial(mock, "test-bucket", "test-key", &s3types.UploadConfig{})

	require.NoError(t, u.Open(ctx))
	assert.Equal(t, "upload-1", u.UploadID())

	for _, chunk := range []string{"first", "second", "third"} {
		recycled, err := u.Write(ctx, []byte(chunk))
		require.NoError(t, err)
		assert.Equal(t, []byte(chunk), recycled, "serial strategy always recycles the chunk")
	}
	require.NoError(t, u.Close(ctx))

	assert.Equal(t, []int32{1, 2, 3}, recorder.numbers)
	assert.Equal(t, []int32{1, 2, 3}, completedParts)

	result := u.Result()
	require.NotNil(t, result)
	assert.Equal(t, "test-key", result.Key)
	assert.Equal(t, "final-etag", result.ETag)
	assert.Equal(t, 3, result.Parts)
	assert.Equal(t, int64(len("first")+len("second")+len("third")), result.Size)
}

func TestSerial_WriteErrorPropagates(t *testing.T) {
	ctx := context.Background()
	uploadErr := errors.New("server error")

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(ctx context.Context, input *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		UploadPartFunc: func(ctx context.Context, input *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			return nil, uploadErr
		},
	}

	u := NewSerial(mock, "test-bucket", "test-key", &s3types.UploadConfig{})
	require.NoError(t, u.Open(ctx))

	_, err := u.Write(ctx, []byte("chunk"))
	require.Error(t, err)
	assert.ErrorIs(t, err, uploadErr)

	var opErr *s3errors.Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "uploadPart", opErr.Op)
	assert.Equal(t, "test-bucket", opErr.Bucket)
}

func TestSerial_OpenErrorPropagates(t *testing.T) {
	startErr := errors.New("access denied")
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(ctx context.Context, input *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return nil, startErr
		},
	}

	u := NewSerial(mock, "test-bucket", "test-key", &s3types.UploadConfig{})
	assert.ErrorIs(t, u.Open(context.Background()), startErr)
}

func TestSerial_AbortBeforeOpenIsNoop(t *testing.T) {
	aborted := false
	mock := &testutil.MockS3Client{
		AbortMultipartUploadFunc: func(ctx context.Context, input *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			aborted = true
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}

	u := NewSerial(mock, "test-bucket", "test-key", &s3types.UploadConfig{})
	require.NoError(t, u.Abort(context.Background()))
	assert.False(t, aborted, "abort without a session must not call the service")
}

func TestSerial_SessionHeaders(t *testing.T) {
	cfg := &s3types.UploadConfig{
		ContentType:  "application/x-tar",
		Metadata:     map[string]string{"origin": "backup"},
		StorageClass: s3types.StorageClassStandardIA,
		ACL:          s3types.ACLPrivate,
	}

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(ctx context.Context, input *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			assert.Equal(t, "application/x-tar", aws.ToString(input.ContentType))
			assert.Equal(t, "backup", input.Metadata["origin"])
			assert.Equal(t, "STANDARD_IA", string(input.StorageClass))
			assert.Equal(t, "private", string(input.ACL))
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
	}

	u := NewSerial(mock, "test-bucket", "test-key", cfg)
	require.NoError(t, u.Open(context.Background()))
}
