package archive

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func quietContext(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func TestUploadPutsFileToPresignedURL(t *testing.T) {
	t.Parallel()

	// Arrange
	source := filepath.Join(t.TempDir(), "results.pkl")
	require.NoError(t, os.WriteFile(source, []byte("pickled results"), 0o644))

	var gotBody []byte
	var gotMethod, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	input := &Input{Action: "upload", SourcePath: source, UploadURL: server.URL}

	// Act
	output, err := OnRunArchive(quietContext(t), &Deps{Client: server.Client()}, input)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "application/octet-stream", gotContentType)
	assert.Equal(t, "pickled results", string(gotBody))
	assert.True(t, output.GetAttr("success").True())
	assert.True(t, output.GetAttr("bytes").RawEquals(cty.NumberIntVal(15)))
}

func TestUploadFailsOnNon200(t *testing.T) {
	t.Parallel()

	// Arrange
	source := filepath.Join(t.TempDir(), "results.pkl")
	require.NoError(t, os.WriteFile(source, []byte("x"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	t.Cleanup(server.Close)

	input := &Input{Action: "upload", SourcePath: source, UploadURL: server.URL}

	// Act
	_, err := OnRunArchive(quietContext(t), &Deps{Client: server.Client()}, input)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestUploadRequiresClient(t *testing.T) {
	t.Parallel()

	// Act
	_, err := OnRunArchive(quietContext(t), &Deps{}, &Input{Action: "upload", SourcePath: "x"})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http_client resource")
}

func TestUnknownActionFails(t *testing.T) {
	t.Parallel()

	// Act
	_, err := OnRunArchive(quietContext(t), &Deps{}, &Input{Action: "teleport"})

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown archive action")
}
