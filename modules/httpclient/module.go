// Package httpclient provides the http_client asset: a shared *http.Client
// with connection pooling, created once and reused by every step that
// declares it in a uses block.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/seqsim/gridrunner/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for creating an http_client resource.
type Input struct {
	Timeout string `grid:"timeout"`
}

// CreateHttpClient is the 'create' handler for the asset. It returns a live
// *http.Client object that will be shared.
func CreateHttpClient(ctx context.Context, input *Input) (*http.Client, error) {
	timeout, err := time.ParseDuration(input.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
	}

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return client, nil
}

// DestroyHttpClient is the 'destroy' handler. For an http.Client,
// we just need to close idle connections.
func DestroyHttpClient(client *http.Client) error {
	client.CloseIdleConnections()
	return nil
}

// Register registers the asset handlers and interface with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAssetHandler("CreateHttpClient", &registry.RegisteredAsset{
		NewInput: func() any { return new(Input) },
		CreateFn: CreateHttpClient,
	})
	r.RegisterAssetHandler("DestroyHttpClient", &registry.RegisteredAsset{
		DestroyFn: DestroyHttpClient,
	})
	r.RegisterAssetInterface("http_client", reflect.TypeOf((*http.Client)(nil)))
}
