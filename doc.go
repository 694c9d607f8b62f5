// Package s3stream uploads unbounded byte streams to S3 as multipart
// objects.
//
// The engine cuts incoming writes into fixed-size chunks and uploads them as
// numbered parts, overlapping network latency across up to a configurable
// number of concurrent part uploads while guaranteeing that the final part
// list submitted to the service is gapless and correctly ordered. Clients
// used for the part uploads come from a bounded, TTL-expiring pool that
// prefers handing a recently used client back to the same concurrent task,
// and the whole pool is periodically replaced to renew long-lived transport
// state.
//
// Key features:
//   - Stream-oriented API: get an io.WriteCloser, write, close
//   - Bounded-concurrency pipelined part uploads with backpressure
//   - Serial fallback strategy for strict synchronous error propagation
//   - Chunk buffer recycling to bound allocations on long streams
//   - Affinity-keyed client pooling with TTL expiry and pool rotation
//
// Example usage:
//
//	client, err := s3stream.New(s3stream.WithRegion("us-east-1"))
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	sink, err := client.StreamUpload(ctx, "my-bucket", "logs/archive.ndjson")
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(sink, source); err != nil {
//	    sink.Abort(ctx)
//	    return err
//	}
//	if err := sink.Close(); err != nil {
//	    sink.Abort(ctx)
//	    return err
//	}
package s3stream
