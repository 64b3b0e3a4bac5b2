package config

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// Loader reads grid and manifest files from disk and translates them into
// the format-agnostic Model. Paths that do not exist are skipped, so the
// summary and follow modes can run without a grid on disk.
type Loader interface {
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter binds raw configuration values to the Go structs a module
// handler receives. It is produced by the Loader so that decoding keeps
// access to the source format's evaluation rules.
type Converter interface {
	// DecodeBody decodes one arguments block into inputStruct, applying
	// the manifest's defaults and rejecting missing required inputs.
	DecodeBody(
		ctx context.Context,
		inputStruct any,
		args map[string]hcl.Expression,
		defs map[string]*InputDefinition,
		evalCtx *hcl.EvalContext,
	) error

	// ToCtyValue converts a handler's native Go return value into the
	// cty.Value other steps reference through the output expression tree.
	ToCtyValue(v any) (cty.Value, error)
}
