package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/seqsim/gridrunner/internal/config"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry performs a strict parity check between manifests and Go code.
// It checks that every manifest lifecycle handler is registered, that declared
// inputs exist on the Go side and vice versa, and that their types line up.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for runnerType, def := range r.DefinitionRegistry {
		if def.Lifecycle == nil || def.Lifecycle.OnRun == "" {
			errs = append(errs, fmt.Sprintf("runner '%s': manifest declares no on_run handler", runnerType))
			continue
		}
		handler, ok := r.HandlerRegistry[def.Lifecycle.OnRun]
		if !ok {
			errs = append(errs, fmt.Sprintf("runner '%s': handler '%s' is not registered", runnerType, def.Lifecycle.OnRun))
			continue
		}
		errs = append(errs, validateInputs(logger, "runner", runnerType, def.Inputs, handler.InputType())...)
	}

	for assetType, def := range r.AssetDefinitionRegistry {
		if def.Lifecycle == nil || def.Lifecycle.Create == "" || def.Lifecycle.Destroy == "" {
			errs = append(errs, fmt.Sprintf("asset '%s': manifest must declare both create and destroy handlers", assetType))
			continue
		}
		handler, ok := r.AssetHandlerRegistry[def.Lifecycle.Create]
		if !ok || handler.CreateFn == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': create handler '%s' is not registered", assetType, def.Lifecycle.Create))
			continue
		}
		if destroy, ok := r.AssetHandlerRegistry[def.Lifecycle.Destroy]; !ok || destroy.DestroyFn == nil {
			errs = append(errs, fmt.Sprintf("asset '%s': destroy handler '%s' is not registered", assetType, def.Lifecycle.Destroy))
		}
		errs = append(errs, validateInputs(logger, "asset", assetType, def.Inputs, handler.InputType())...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// validateInputs cross-checks a manifest's declared inputs against the fields
// of the registered Go input struct.
func validateInputs(logger *slog.Logger, kind, typeName string, defs map[string]*config.InputDefinition, inputType reflect.Type) []string {
	var errs []string

	if inputType == nil {
		if len(defs) > 0 {
			errs = append(errs, fmt.Sprintf("%s '%s': manifest declares inputs, but Go handler has no input struct", kind, typeName))
		}
		return errs
	}

	manifestInputs := make(map[string]struct{})
	for name := range defs {
		manifestInputs[name] = struct{}{}
	}

	goInputs := make(map[string]reflect.StructField)
	for i := 0; i < inputType.NumField(); i++ {
		field := inputType.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("grid")
		tagName := strings.Split(tag, ",")[0]
		if tagName != "" && tagName != "-" {
			goInputs[tagName] = field
		}
	}

	// Presence checks in both directions.
	for name := range goInputs {
		if _, ok := manifestInputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("%s '%s': Go struct has field for input '%s' which is not declared in manifest", kind, typeName, name))
		}
	}
	for name := range manifestInputs {
		if _, ok := goInputs[name]; !ok {
			errs = append(errs, fmt.Sprintf("%s '%s': manifest declares input '%s' which is not found in Go struct", kind, typeName, name))
		}
	}

	// Type checks for the inputs present on both sides.
	for name, inputDef := range defs {
		goField, ok := goInputs[name]
		if !ok {
			continue
		}

		manifestType := inputDef.Type
		if manifestType.Equals(cty.DynamicPseudoType) {
			logger.Warn("Manifest input uses 'type = any', which disables static type checking.", "kind", kind, "type", typeName, "input", name)
			continue
		}

		fieldType := goField.Type
		if fieldType.Kind() == reflect.Pointer {
			fieldType = fieldType.Elem()
		}
		goFieldType, err := gocty.ImpliedType(reflect.Zero(fieldType).Interface())
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s '%s', input '%s': could not imply cty type from Go field type %s: %v", kind, typeName, name, goField.Type, err))
			continue
		}

		if !manifestType.Equals(goFieldType) {
			errs = append(errs, fmt.Sprintf("%s '%s', input '%s': type mismatch. Manifest requires '%s' but Go field '%s' provides '%s'",
				kind, typeName, name, manifestType.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
		}
	}

	return errs
}
