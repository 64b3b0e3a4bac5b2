// Package archive provides a runner that uploads run artifacts to a
// pre-signed object-store URL once a sweep finishes.
package archive

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Action      string `grid:"action"`
	SourcePath  string `grid:"source_path"`
	UploadURL   string `grid:"upload_url"`
	ContentType string `grid:"content_type"`
}

// Deps defines the injected resources from the 'uses' HCL block. The client
// comes from an http_client resource so every upload in a sweep shares one
// connection pool.
type Deps struct {
	Client *http.Client `grid:"client"`
}

// handleUpload contains the logic for uploading a file to a pre-signed URL.
func handleUpload(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("action", "upload")

	if deps.Client == nil {
		return cty.NilVal, fmt.Errorf("archive upload requires an http_client resource in the step's uses block")
	}

	file, err := os.Open(input.SourcePath)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to open source file '%s': %w", input.SourcePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to get file stats for '%s': %w", input.SourcePath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, input.UploadURL, file)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to create upload request: %w", err)
	}

	contentType := input.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(input.SourcePath))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading artifact.", "source", input.SourcePath, "size", stat.Size(), "contentType", contentType)

	resp, err := deps.Client.Do(req)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return cty.NilVal, fmt.Errorf("upload failed with status: %s", resp.Status)
	}

	logger.Info("Successfully uploaded artifact.", "status", resp.Status)

	return cty.ObjectVal(map[string]cty.Value{
		"success": cty.BoolVal(true),
		"status":  cty.StringVal(resp.Status),
		"bytes":   cty.NumberIntVal(stat.Size()),
	}), nil
}

// OnRunArchive is the handler for the 'archive' runner's on_run lifecycle event.
func OnRunArchive(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	switch strings.ToLower(input.Action) {
	case "upload":
		return handleUpload(ctx, deps, input)
	case "download":
		return cty.NilVal, fmt.Errorf("archive action 'download' is not yet implemented")
	default:
		return cty.NilVal, fmt.Errorf("unknown archive action: '%s'", input.Action)
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunArchive", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunArchive,
	})
}
