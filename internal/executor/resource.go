package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/dag"
)

// runResourceNode handles the creation of a stateful resource.
func (e *Executor) runResourceNode(ctx context.Context, node *dag.Node) error {
	logger := ctxlog.FromContext(ctx).With("resource", node.ID())
	logger.Info("▶️ Creating resource")

	assetType := node.ResourceConfig.AssetType
	assetDef, ok := e.registry.AssetDefinitionRegistry[assetType]
	if !ok {
		return fmt.Errorf("unknown asset type '%s'", assetType)
	}
	createHandlerName := assetDef.Lifecycle.Create
	destroyHandlerName := assetDef.Lifecycle.Destroy

	assetHandler, ok := e.registry.AssetHandlerRegistry[createHandlerName]
	if !ok || assetHandler.CreateFn == nil {
		return fmt.Errorf("create handler '%s' not registered", createHandlerName)
	}

	destroyHandler, ok := e.registry.AssetHandlerRegistry[destroyHandlerName]
	if !ok || destroyHandler.DestroyFn == nil {
		return fmt.Errorf("destroy handler '%s' not registered", destroyHandlerName)
	}

	var inputStruct any
	if assetHandler.NewInput != nil {
		inputStruct = assetHandler.NewInput()
	}
	if inputStruct != nil {
		logger.Debug("Decoding resource arguments.")
		evalCtx := e.buildEvalContext(ctx, node)
		if err := e.converter.DecodeBody(ctx, inputStruct, node.ResourceConfig.Arguments, assetDef.Inputs, evalCtx); err != nil {
			return fmt.Errorf("decoding arguments for %s: %w", node.ID(), err)
		}
	}

	logger.Debug("Calling resource create handler.", "handler", createHandlerName)
	handlerFunc := reflect.ValueOf(assetHandler.CreateFn)
	callArgs := []reflect.Value{reflect.ValueOf(ctx)}
	if inputStruct == nil {
		callArgs = append(callArgs, reflect.Zero(handlerFunc.Type().In(1)))
	} else {
		callArgs = append(callArgs, reflect.ValueOf(inputStruct))
	}
	results := handlerFunc.Call(callArgs)
	resourceObj, errResult := results[0].Interface(), results[1].Interface()
	if errResult != nil {
		return errResult.(error)
	}

	node.Output = resourceObj
	e.resourceInstances.Store(node.ID(), resourceObj)
	e.pushCleanup(node, func() {
		logger.Info("🔥 Destroying resource")
		reflect.ValueOf(destroyHandler.DestroyFn).Call([]reflect.Value{reflect.ValueOf(resourceObj)})
		e.resourceInstances.Delete(node.ID())
	})

	logger.Info("✅ Resource created")
	return nil
}

// destroyResource tears down a resource as soon as its last consumer is done.
func (e *Executor) destroyResource(ctx context.Context, node *dag.Node) {
	logger := ctxlog.FromContext(ctx)
	instance, found := e.resourceInstances.Load(node.ID())
	if !found {
		return
	}

	resourceLogger := logger.With("resource", node.ID())
	assetDef, ok := e.registry.AssetDefinitionRegistry[node.ResourceConfig.AssetType]
	if !ok || assetDef.Lifecycle == nil {
		resourceLogger.Warn("Cannot destroy resource early: asset definition or lifecycle not found.")
		return
	}

	destroyHandler, ok := e.registry.AssetHandlerRegistry[assetDef.Lifecycle.Destroy]
	if !ok || destroyHandler.DestroyFn == nil {
		resourceLogger.Warn("Cannot destroy resource early: destroy handler not found.", "handler", assetDef.Lifecycle.Destroy)
		return
	}

	node.Destroy(func() {
		resourceLogger.Info("🔥 Destroying resource")
		reflect.ValueOf(destroyHandler.DestroyFn).Call([]reflect.Value{reflect.ValueOf(instance)})
		e.resourceInstances.Delete(node.ID())
	})
}

// pushCleanup adds a teardown function to the LIFO cleanup stack. The node's
// destroyOnce guard keeps early destruction and final cleanup from both firing.
func (e *Executor) pushCleanup(node *dag.Node, f func()) {
	e.cleanupMutex.Lock()
	defer e.cleanupMutex.Unlock()
	e.cleanupStack = append(e.cleanupStack, func() {
		node.Destroy(f)
	})
}

// executeCleanupStack runs all registered cleanup functions in LIFO order.
func (e *Executor) executeCleanupStack(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	e.cleanupMutex.Lock()
	defer e.cleanupMutex.Unlock()
	if len(e.cleanupStack) == 0 {
		return
	}
	logger.Debug("Executing cleanup stack.", "entries", len(e.cleanupStack))
	for i := len(e.cleanupStack) - 1; i >= 0; i-- {
		e.cleanupStack[i]()
	}
	e.cleanupStack = nil
}
