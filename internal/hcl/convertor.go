package hcl

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/seqsim/gridrunner/internal/config"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// DecodeBody binds one arguments block onto a handler's input struct. Struct
// fields opt in with a `grid` tag naming the manifest input they bind to;
// fields without a matching manifest input are left untouched. An input with
// neither an argument nor a default is a hard error.
func (c *Converter) DecodeBody(
	ctx context.Context,
	inputStruct any,
	args map[string]hcl.Expression,
	defs map[string]*config.InputDefinition,
	evalCtx *hcl.EvalContext,
) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting HCL body decoding.")

	structVal := reflect.ValueOf(inputStruct)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() {
		return fmt.Errorf("inputStruct must be a non-nil pointer")
	}
	structVal = structVal.Elem()
	structType := structVal.Type()

	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		fieldVal := structVal.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		name := inputName(field)
		def, declared := defs[name]
		if !declared {
			continue
		}

		if err := c.decodeField(ctx, name, def, args[name], fieldVal.Addr().Interface(), evalCtx); err != nil {
			return err
		}
	}

	logger.Debug("Finished HCL body decoding successfully.")
	return nil
}

// inputName resolves the manifest input a struct field binds to, preferring
// the `grid` tag over the field name.
func inputName(field reflect.StructField) string {
	if tag := field.Tag.Get("grid"); tag != "" {
		return strings.Split(tag, ",")[0]
	}
	return field.Name
}

// decodeField fills one struct field from its argument expression, falling
// back to the manifest default when the grid omits the argument.
func (c *Converter) decodeField(
	ctx context.Context,
	name string,
	def *config.InputDefinition,
	expr hcl.Expression,
	targetPtr any,
	evalCtx *hcl.EvalContext,
) error {
	if expr != nil {
		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return diags
		}
		if err := c.decode(ctx, val, targetPtr); err != nil {
			return fmt.Errorf("failed to decode argument '%s': %w", name, err)
		}
		return nil
	}

	if def.Default == nil && !def.Optional {
		return fmt.Errorf("missing required argument %q", name)
	}
	if def.Default != nil {
		if err := c.decode(ctx, *def.Default, targetPtr); err != nil {
			return fmt.Errorf("failed to apply default for '%s': %w", name, err)
		}
	}
	return nil
}

// decode converts a cty.Value to the Go pointer's type. Conversion goes
// through cty's convert package first so that, for example, an HCL number
// can land in an int64 field or an object in a map[string]string.
func (c *Converter) decode(ctx context.Context, val cty.Value, goVal any) error {
	logger := ctxlog.FromContext(ctx)
	valPtr := reflect.ValueOf(goVal)
	if valPtr.Kind() != reflect.Ptr {
		return fmt.Errorf("target for decoding must be a pointer, got %T", goVal)
	}

	impliedType, err := gocty.ImpliedType(valPtr.Elem().Interface())
	if err != nil {
		logger.Debug("Could not imply cty.Type from Go type, attempting direct decoding.", "go_type", valPtr.Elem().Type().String(), "error", err)
		return gocty.FromCtyValue(val, goVal)
	}

	convertedVal, err := convert.Convert(val, impliedType)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w", val.Type().FriendlyName(), impliedType.FriendlyName(), err)
	}

	if !val.Type().Equals(convertedVal.Type()) {
		logger.Debug("Implicitly converted value type.",
			"from", val.Type().FriendlyName(),
			"to", convertedVal.Type().FriendlyName(),
		)
	}

	return gocty.FromCtyValue(convertedVal, goVal)
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NilVal, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}
