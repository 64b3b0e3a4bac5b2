package registry

import (
	"reflect"

	"github.com/seqsim/gridrunner/internal/config"
)

// Module is implemented by every compiled-in module. Register is called once
// at startup to attach the module's handlers to the registry.
type Module interface {
	Register(r *Registry)
}

// Registry maps the names declared in module manifests to their compiled Go
// counterparts: runner handlers, asset lifecycles and asset interface types.
// The executor resolves every step through it, and validation at startup
// checks the two sides against each other.
type Registry struct {
	HandlerRegistry         map[string]*RegisteredRunner
	AssetHandlerRegistry    map[string]*RegisteredAsset
	DefinitionRegistry      map[string]*config.RunnerDefinition
	AssetDefinitionRegistry map[string]*config.AssetDefinition
	AssetInterfaceRegistry  map[string]reflect.Type
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		HandlerRegistry:         make(map[string]*RegisteredRunner),
		AssetHandlerRegistry:    make(map[string]*RegisteredAsset),
		DefinitionRegistry:      make(map[string]*config.RunnerDefinition),
		AssetDefinitionRegistry: make(map[string]*config.AssetDefinition),
		AssetInterfaceRegistry:  make(map[string]reflect.Type),
	}
}

// AdoptDefinitions indexes the loaded manifest definitions by runner and
// asset type so execution does not have to walk the config model.
func (r *Registry) AdoptDefinitions(model *config.Model) {
	for key, val := range model.Runners {
		r.DefinitionRegistry[key] = val
	}
	for key, val := range model.Assets {
		r.AssetDefinitionRegistry[key] = val
	}
}
