package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, r *mux.Router) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", Timeout: 2 * time.Second, Retries: 0})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLookup_LocalAndRemote(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	r := mux.NewRouter()
	r.HandleFunc("/local/search/{appId}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": mux.Vars(req)["appId"], "source": "local"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/db/search/{appId}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": mux.Vars(req)["appId"], "source": "remote"})
	}).Methods(http.MethodGet)
	c := newTestClient(t, r)

	// --- Act ---
	local, lerr := c.Lookup(context.Background(), "comfyui", true)
	remote, rerr := c.Lookup(context.Background(), "comfyui", false)

	// --- Assert ---
	require.NoError(t, lerr)
	require.NoError(t, rerr)
	assert.Equal(t, map[string]any{"id": "comfyui", "source": "local"}, local)
	assert.Equal(t, map[string]any{"id": "comfyui", "source": "remote"}, remote)
}

func TestLookup_NonObjectIsWrapped(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	r.HandleFunc("/db/search/{appId}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []string{"a", "b"})
	})
	c := newTestClient(t, r)

	got, err := c.RemoteMetadata(context.Background(), "x")

	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": []any{"a", "b"}}, got)
}

func TestLookup_ErrorStatusIsAPIError(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	r.HandleFunc("/local/search/{appId}", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	c := newTestClient(t, r)

	_, err := c.LocalMetadata(context.Background(), "missing")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not found", apiErr.Body)
}

func TestStopApp(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	r.HandleFunc("/scripts/stop/{appId}", func(w http.ResponseWriter, req *http.Request) {
		switch mux.Vars(req)["appId"] {
		case "json":
			writeJSON(w, http.StatusOK, map[string]any{"message": "Script killed successfully"})
		default:
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("Failed to kill process 12"))
		}
	}).Methods(http.MethodGet)
	c := newTestClient(t, r)

	msg, err := c.StopApp(context.Background(), "json")
	require.NoError(t, err)
	assert.Equal(t, "Script killed successfully", msg)

	msg, err = c.StopApp(context.Background(), "plain")
	require.NoError(t, err)
	assert.Equal(t, "Failed to kill process 12", msg)
}

func TestInstallDependencies(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var got map[string]any
	r := mux.NewRouter()
	r.HandleFunc("/deps/install", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&got)
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
	}).Methods(http.MethodPost)
	c := newTestClient(t, r)

	// --- Act ---
	err := c.InstallDependencies(context.Background(), "foo", []string{"git", "conda"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "foo", got["appId"])
	assert.Equal(t, []any{"git", "conda"}, got["dependencies"])
}

func TestConfig(t *testing.T) {
	t.Parallel()
	r := mux.NewRouter()
	r.HandleFunc("/config", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"language": "en"})
	})
	c := newTestClient(t, r)

	cfg, err := c.Config(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "en", cfg["language"])
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()
	_, err := New(Config{})
	assert.Error(t, err)
}
