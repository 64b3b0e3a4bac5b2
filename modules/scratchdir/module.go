// Package scratchdir provides the scratch_dir asset: a temporary working
// directory created before the first consuming step and removed after the
// last one finishes.
package scratchdir

import (
	"context"
	"reflect"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/fsutil"
	"github.com/seqsim/gridrunner/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for creating a scratch_dir resource.
type Input struct {
	Parent string `grid:"parent"`
	Prefix string `grid:"prefix"`
}

// CreateScratchDir is the 'create' handler for the asset. It returns a live
// *fsutil.ScratchDir shared by every step that uses the resource.
func CreateScratchDir(ctx context.Context, input *Input) (*fsutil.ScratchDir, error) {
	dir, err := fsutil.NewScratchDir(input.Parent, input.Prefix)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Info("Created scratch directory.", "path", dir.Path)
	return dir, nil
}

// DestroyScratchDir is the 'destroy' handler for the asset.
func DestroyScratchDir(dir *fsutil.ScratchDir) error {
	return dir.Remove()
}

// Register registers the asset handlers and interface with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateScratchDir", &registry.RegisteredAsset{
		NewInput: func() any { return new(Input) },
		CreateFn: CreateScratchDir,
	})
	r.RegisterAssetHandler("DestroyScratchDir", &registry.RegisteredAsset{
		DestroyFn: DestroyScratchDir,
	})
	r.RegisterAssetInterface("scratch_dir", reflect.TypeOf((*fsutil.ScratchDir)(nil)))
}
