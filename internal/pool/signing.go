package pool

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// StripStaleAuth returns an S3 client option that removes any
// authorization-related headers immediately before the request is signed.
//
// A transport-level reconnect can replay an already-signed request; without
// this hook the stale Authorization, content-hash and date headers would be
// resent alongside the fresh signature and the service would reject the
// request. Every pooled client must carry this option.
func StripStaleAuth() func(*s3.Options) {
	return func(o *s3.Options) {
		o.APIOptions = append(o.APIOptions, func(stack *middleware.Stack) error {
			return stack.Finalize.Insert(
				stripStaleAuthMiddleware{},
				"Signing",
				middleware.Before,
			)
		})
	}
}

type stripStaleAuthMiddleware struct{}

func (stripStaleAuthMiddleware) ID() string { return "StripStaleAuthHeaders" }

func (stripStaleAuthMiddleware) HandleFinalize(
	ctx context.Context,
	in middleware.FinalizeInput,
	next middleware.FinalizeHandler,
) (middleware.FinalizeOutput, middleware.Metadata, error) {
	if req, ok := in.Request.(*smithyhttp.Request); ok {
		req.Header.Del("Authorization")
		req.Header.Del("X-Amz-Date")
		req.Header.Del("X-Amz-Content-Sha256")
	}
	return next.HandleFinalize(ctx, in)
}
