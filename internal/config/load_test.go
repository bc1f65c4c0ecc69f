package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(context.Background(), "")

	require.NoError(t, err)
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// --- Arrange ---
	t.Setenv("SCRIPTDECK_TEST_REMOTE", "https://db.example.com")
	dir := t.TempDir()
	path := filepath.Join(dir, "scriptdeck.hcl")
	src := `
backend {
  port        = 4242
  api_timeout = "3s"
  retries     = 0
  remote_url  = env.SCRIPTDECK_TEST_REMOTE
}

session {
  reconnect_timeout = "500ms"
  max_log_lines     = 200
  reserved_app_id   = "shell"
}

heuristics {
  success_phrases = ["all done"]
}

status {
  port = 8081
}

app "comfyui" {
  local = true
}

app "fooocus" {
  port = 7000
}
`
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))

	// --- Act ---
	cfg, err := Load(context.Background(), path)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 4242, cfg.BackendPort)
	assert.Equal(t, DefaultBackendHost, cfg.BackendHost)
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.Equal(t, 0, cfg.APIRetries)
	assert.Equal(t, "https://db.example.com", cfg.RemoteURL)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectTimeout)
	assert.Equal(t, DefaultHandshakeTimeout, cfg.HandshakeTimeout)
	assert.Equal(t, 200, cfg.MaxLogLines)
	assert.Equal(t, "shell", cfg.ReservedAppID)
	assert.Equal(t, []string{"all done"}, cfg.Heuristics.SuccessPhrases)
	assert.NotEmpty(t, cfg.Heuristics.ServerReadyPhrases, "unset lists keep their defaults")
	assert.Equal(t, 8081, cfg.StatusPort)
	assert.Equal(t, []App{{ID: "comfyui", Local: true}, {ID: "fooocus", Port: 7000}}, cfg.Apps)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		src  string
	}{
		{name: "syntax", src: `backend {`},
		{name: "unknown block", src: `frontend {}`},
		{name: "bad duration", src: `session { poll_interval = "soon" }`},
		{name: "negative duration", src: `session { poll_interval = "-1s" }`},
		{name: "port range", src: `backend { port = 70000 }`},
		{name: "duplicate app", src: "app \"a\" {}\napp \"a\" {}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := Parse([]byte(tc.src), "test.hcl", Default())
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}
