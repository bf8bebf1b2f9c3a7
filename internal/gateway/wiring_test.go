package gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/sampler"
)

func TestParseWeights_EmptyStringYieldsNilTable(t *testing.T) {
	w, err := ParseWeights("")
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestParseWeights_ParsesDirectionalEntries(t *testing.T) {
	w, err := ParseWeights("noise:quiet/noise:loud/1.0,noise:loud/noise:quiet/0.5")
	require.NoError(t, err)

	quiet := testKey(t, "noise", "quiet")
	loud := testKey(t, "noise", "loud")
	assert.Equal(t, 1.0, w[sampler.Pair{A: quiet, B: loud}])
	assert.Equal(t, 0.5, w[sampler.Pair{A: loud, B: quiet}])
}

func TestParseWeights_RejectsMalformedEntry(t *testing.T) {
	_, err := ParseWeights("noise:quiet/noise:loud")
	assert.Error(t, err)
}

func TestLoadPrebaked_MissingFileReturnsEmptyMap(t *testing.T) {
	prompts, err := LoadPrebaked(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestLoadPrebaked_KeysByChecksum(t *testing.T) {
	prompt := arena.DetailedTextToMusicPrompt{OverallPrompt: "a test prompt", Duration: 30, Instrumental: true}
	raw, err := json.Marshal([]arena.DetailedTextToMusicPrompt{prompt})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "prebaked.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	prompts, err := LoadPrebaked(path)
	require.NoError(t, err)
	assert.Equal(t, prompt, prompts[prompt.Checksum()])
}

func TestBuildClients_AddressesEverySystemAtDeploymentPort(t *testing.T) {
	reg := testRegistry(t)
	clients := BuildClients(reg, "http://localhost")
	assert.Len(t, clients, 3)
	for key, c := range clients {
		assert.Equal(t, key, c.Key)
		assert.Equal(t, fmt.Sprintf("http://localhost:%d", key.Port()), c.BaseURL)
	}
}
