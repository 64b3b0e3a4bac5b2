package testutil

import (
	"context"

	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// NoOpModule registers a single "NoOp" runner. It's useful for tests that
// should fail before execution begins but still need valid HCL that can pass
// registry validation.
type NoOpModule struct{}

// Register registers a single "NoOp" runner that takes no inputs,
// requires no dependencies, and does nothing.
func (m *NoOpModule) Register(r *registry.Registry) {
	r.RegisterRunner("NoOp", &registry.RegisteredRunner{
		NewInput: func() any { return new(struct{}) },
		NewDeps:  func() any { return new(struct{}) },
		Fn: func(ctx context.Context, deps *struct{}, input *struct{}) (cty.Value, error) {
			// No operation
			return cty.NilVal, nil
		},
	})
}
