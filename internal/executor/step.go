package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/dag"
	"github.com/seqsim/gridrunner/internal/runid"
	"github.com/seqsim/gridrunner/internal/sweep"
	"github.com/zclconf/go-cty/cty"
)

// runStepNode handles the execution of a single run instance.
func (e *Executor) runStepNode(ctx context.Context, node *dag.Node) error {
	// Scope the context logger so everything below, handlers included, tags
	// its lines with this run.
	ctx = ctxlog.With(ctx, "step", node.ID())
	logger := ctxlog.FromContext(ctx)
	logger.Info("▶️ Starting step")

	// Handlers learn their run identity and sweep parameters from the context.
	ctx = runid.NewContext(ctx, node.Address())
	if node.Instance != nil {
		ctx = sweep.NewContext(ctx, *node.Instance)
	}

	runnerDef, ok := e.registry.DefinitionRegistry[node.StepConfig.RunnerType]
	if !ok {
		return fmt.Errorf("unknown runner type '%s'", node.StepConfig.RunnerType)
	}
	handlerName := runnerDef.Lifecycle.OnRun
	registeredHandler, ok := e.registry.HandlerRegistry[handlerName]
	if !ok {
		return fmt.Errorf("handler '%s' not registered", handlerName)
	}

	evalCtx := e.buildEvalContext(ctx, node)

	var inputStruct any
	if registeredHandler.NewInput != nil {
		inputStruct = registeredHandler.NewInput()
	}
	if inputStruct != nil {
		logger.Debug("Decoding step arguments.")
		if err := e.converter.DecodeBody(ctx, inputStruct, node.StepConfig.Arguments, runnerDef.Inputs, evalCtx); err != nil {
			return fmt.Errorf("decoding arguments for %s: %w", node.ID(), err)
		}
	}

	logger.Debug("Building step dependencies.")
	depsStruct, err := e.buildDepsStruct(ctx, node, registeredHandler)
	if err != nil {
		return err
	}

	logger.Debug("Calling step run handler.", "handler", handlerName)
	handlerFunc := reflect.ValueOf(registeredHandler.Fn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(depsStruct)}
	if inputStruct == nil {
		inputType := handlerFunc.Type().In(2)
		callArgs = append(callArgs, reflect.Zero(inputType))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}

	results := handlerFunc.Call(callArgs)
	outputVal, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	if outputVal == nil {
		node.Output = cty.NilVal
	} else if ctyOutput, ok := outputVal.(cty.Value); ok {
		node.Output = ctyOutput
	} else {
		return fmt.Errorf("handler for step %s returned non-cty.Value type: %T", node.ID(), outputVal)
	}

	logger.Info("✅ Finished step")
	return nil
}
