package testutil

import (
	"reflect"

	"github.com/seqsim/gridrunner/internal/registry"
)

// SimpleModule is a test helper for easily creating a mock module that
// registers a single runner or asset handler, plus an optional asset
// interface contract.
type SimpleModule struct {
	RunnerName string
	Runner     *registry.RegisteredRunner

	AssetName string
	Asset     *registry.RegisteredAsset

	InterfaceType string
	Interface     reflect.Type
}

// Register implements the registry.Module interface.
func (m *SimpleModule) Register(r *registry.Registry) {
	if m.RunnerName != "" && m.Runner != nil {
		r.RegisterRunner(m.RunnerName, m.Runner)
	}
	if m.AssetName != "" && m.Asset != nil {
		r.RegisterAssetHandler(m.AssetName, m.Asset)
	}
	if m.InterfaceType != "" && m.Interface != nil {
		r.RegisterAssetInterface(m.InterfaceType, m.Interface)
	}
}
