package gateway

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/generatorclient"
	"github.com/gclef-cmu/music-arena/internal/registry"
	"github.com/gclef-cmu/music-arena/internal/store"
)

// testRegistryYAML declares three instrumental-capable OPEN variants of
// one system, enough candidates for resample tests to have a third
// option after the sampled pair's loser is excluded.
const testRegistryYAML = `
noise:
  display_name: Noise
  description: test fixture
  organization: gclef
  access: OPEN
  supports_lyrics: false
  variants:
    quiet:
      module_name: noise
      class_name: Quiet
    loud:
      module_name: noise
      class_name: Loud
    soft:
      module_name: noise
      class_name: Soft
`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistryYAML), 0o644))
	reg, err := registry.Load(path, nil)
	require.NoError(t, err)
	return reg
}

func testKey(t *testing.T, system, variant string) arena.SystemKey {
	t.Helper()
	k, err := arena.NewSystemKey(system, variant)
	require.NoError(t, err)
	return k
}

// fakeSystemBehavior configures one fake system server's responses.
type fakeSystemBehavior struct {
	support      arena.PromptSupport // defaults to arena.Supported
	generateCode int                 // defaults to 200
	generateBody []byte              // audio bytes on success
	delay        time.Duration
}

// newFakeSystemServer stands in for a System Server's /prompt_support,
// /generate, and /health endpoints so tests can drive the Generator
// Client the same way client_test.go does.
func newFakeSystemServer(t *testing.T, b fakeSystemBehavior) *httptest.Server {
	t.Helper()
	if b.support == "" {
		b.support = arena.Supported
	}
	if b.generateCode == 0 {
		b.generateCode = http.StatusOK
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.delay > 0 {
			time.Sleep(b.delay)
		}
		switch r.URL.Path {
		case "/prompt_support":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"prompt_support": string(b.support)})
		case "/generate":
			if b.generateCode != http.StatusOK {
				w.WriteHeader(b.generateCode)
				_, _ = w.Write([]byte("generation failed"))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"audio_b64":   base64.StdEncoding.EncodeToString(b.generateBody),
				"sample_rate": 44100,
				"metadata":    map[string]any{"batch_size": 1},
			})
		case "/health":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFakeClient(t *testing.T, key arena.SystemKey, b fakeSystemBehavior) *generatorclient.Client {
	t.Helper()
	srv := newFakeSystemServer(t, b)
	return generatorclient.NewClient(key, srv.URL, 2*time.Second)
}

func testBlobStore(t *testing.T) store.BlobStore {
	t.Helper()
	return store.NewLocalBlobStore(t.TempDir(), "")
}

func testSession(t *testing.T) arena.Session {
	t.Helper()
	return arena.Session{UUID: "session-1", CreateTime: time.Now().UTC(), AckTOS: true}
}
