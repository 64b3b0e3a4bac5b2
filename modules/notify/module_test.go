package notify

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietContext(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func TestNotifyRejectsUnparsableURL(t *testing.T) {
	t.Parallel()

	// Arrange
	input := &Input{URL: "://missing-scheme", Event: "done", Timeout: "1s"}

	// Act
	_, err := OnRunNotify(quietContext(t), &Deps{}, input)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse URL")
}

func TestNotifyFailsWhenEndpointUnreachable(t *testing.T) {
	t.Parallel()

	// Arrange: port 1 is never a socket.io server.
	input := &Input{
		URL:      "http://127.0.0.1:1/socket.io/",
		Event:    "done",
		AckEvent: "ack",
		Timeout:  "2s",
	}

	// Act
	start := time.Now()
	_, err := OnRunNotify(quietContext(t), &Deps{}, input)

	// Assert
	require.Error(t, err)
	assert.Less(t, time.Since(start), 30*time.Second)
}

func TestRegisterExposesHandler(t *testing.T) {
	t.Parallel()

	// Arrange
	r := registry.New()

	// Act
	(&Module{}).Register(r)

	// Assert
	handler, ok := r.HandlerRegistry["OnRunNotify"]
	require.True(t, ok)
	assert.IsType(t, &Input{}, handler.NewInput())
}
