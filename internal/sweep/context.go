package sweep

import "context"

type contextKey struct{}

// NewContext returns a context carrying the run instance being executed, so
// handlers can render placeholder templates against its parameters.
func NewContext(ctx context.Context, inst Instance) context.Context {
	return context.WithValue(ctx, contextKey{}, inst)
}

// FromContext returns the run instance attached to the context, if any.
func FromContext(ctx context.Context) (Instance, bool) {
	inst, ok := ctx.Value(contextKey{}).(Instance)
	return inst, ok
}
