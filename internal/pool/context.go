package pool

import "context"

type affinityCtxKey struct{}

// WithAffinity tags the context with the identity of the calling concurrent
// task. The pool prefers handing the same client back to the same affinity
// key. Affinity is a performance optimization, not a correctness requirement:
// a miss simply constructs a new client.
func WithAffinity(ctx context.Context, id uint64) context.Context {
	return context.WithValue(ctx, affinityCtxKey{}, id)
}

// AffinityFrom extracts the affinity key from the context.
func AffinityFrom(ctx context.Context) (uint64, bool) {
	id, ok := ctx.Value(affinityCtxKey{}).(uint64)
	return id, ok
}
