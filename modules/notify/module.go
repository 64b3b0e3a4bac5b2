// Package notify provides a runner that pushes run results to a socket.io
// endpoint, typically a monitoring dashboard watching a long sweep.
package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the notify runner.
type Input struct {
	URL                string            `grid:"url"`
	Namespace          string            `grid:"namespace"`
	Event              string            `grid:"event"`
	Payload            map[string]string `grid:"payload"`
	AckEvent           string            `grid:"ack_event"`
	Timeout            string            `grid:"timeout"`
	InsecureSkipVerify bool              `grid:"insecure_skip_verify"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// opResult is a private struct to safely pass results through the done channel.
type opResult struct {
	response string
	err      error
}

// OnRunNotify is the handler for the 'notify' runner's on_run lifecycle event.
// It connects, emits the event with the payload, then waits for the server's
// acknowledgement event before disconnecting so the message cannot be lost
// in a closing connection.
func OnRunNotify(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("runner", "notify", "url", input.URL, "event", input.Event)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	var isConnected atomic.Bool

	timeout, err := time.ParseDuration(input.Timeout)
	if err != nil {
		logger.Warn("Failed to parse timeout, using default 10s", "inputTimeout", input.Timeout, "error", err)
		timeout = 10 * time.Second
	}

	done := make(chan opResult, 1)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return cty.NilVal, fmt.Errorf("failed to parse URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)

	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	payload := make(map[string]any, len(input.Payload))
	for k, v := range input.Payload {
		payload[k] = v
	}

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	// --- Event Listeners ---
	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected to notification endpoint", "namespace", input.Namespace, "sid", io.Id())
		logger.Debug("Emitting notification", "event", input.Event)
		io.Emit(input.Event, payload)
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		done <- opResult{err: errs[0].(error)}
	})

	io.On(types.EventName(input.AckEvent), func(data ...any) {
		var response string
		if len(data) > 0 {
			if raw, err := json.Marshal(data[0]); err == nil {
				response = string(raw)
			}
		}
		done <- opResult{response: response}
	})

	// --- Execution Block ---
	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return cty.NilVal, fmt.Errorf("timed out after connecting while waiting for event '%s'", input.AckEvent)
		}
		return cty.NilVal, fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		if res.err != nil {
			return cty.NilVal, res.err
		}
		return cty.ObjectVal(map[string]cty.Value{
			"acknowledged": cty.True,
			"response":     cty.StringVal(res.response),
		}), nil
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunNotify", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunNotify,
	})
}
