package runid

import "context"

type contextKey struct{}

// NewContext returns a context carrying the address of the run being executed.
func NewContext(ctx context.Context, addr Address) context.Context {
	return context.WithValue(ctx, contextKey{}, addr)
}

// FromContext returns the address of the current run, if one is set.
func FromContext(ctx context.Context) (Address, bool) {
	addr, ok := ctx.Value(contextKey{}).(Address)
	return addr, ok
}
