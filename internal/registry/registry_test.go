package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

const sampleYAML = `
noise:
  display_name: Noise
  description: A trivial test generator.
  organization: gclef
  access: OPEN
  supports_lyrics: false
  model_type: synthetic
  variants:
    quiet:
      module_name: noise
      class_name: QuietNoise
      description: quiet variant
    loud:
      module_name: noise
      class_name: LoudNoise
singer:
  display_name: Singer
  description: A vocal test generator.
  organization: gclef
  access: PROPRIETARY
  supports_lyrics: true
  variants:
    default:
      module_name: singer
      class_name: Singer
      secrets: [singer-api-key]
`

type fakeResolver struct {
	resolvable map[string]bool
}

func (f fakeResolver) Resolve(tag string) bool {
	return f.resolvable[tag]
}

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_HappyPath(t *testing.T) {
	path := writeFixture(t, sampleYAML)
	resolver := fakeResolver{resolvable: map[string]bool{"singer-api-key": true}}

	reg, err := Load(path, resolver)
	require.NoError(t, err)

	all := reg.All()
	require.Len(t, all, 3)
	// lexicographic: noise:loud, noise:quiet, singer:default
	assert.Equal(t, "noise:loud", all[0].String())
	assert.Equal(t, "noise:quiet", all[1].String())
	assert.Equal(t, "singer:default", all[2].String())

	quiet, ok := reg.Lookup(all[1])
	require.True(t, ok)
	assert.Equal(t, "Noise", quiet.DisplayName)
	assert.Equal(t, "quiet variant", quiet.Description)
	assert.True(t, quiet.RequiresGPU) // defaults true for OPEN access

	singer, ok := reg.Lookup(all[2])
	require.True(t, ok)
	assert.True(t, singer.SupportsLyrics)
	assert.False(t, singer.RequiresGPU) // defaults false for PROPRIETARY access
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/registry.yaml", fakeResolver{})
	require.Error(t, err)
	var rerr *RegistryError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrNotFound, rerr.Kind)
}

func TestLoad_SecretMissing(t *testing.T) {
	path := writeFixture(t, sampleYAML)
	resolver := fakeResolver{resolvable: map[string]bool{}}

	_, err := Load(path, resolver)
	require.Error(t, err)
	var rerr *RegistryError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrSecretMissing, rerr.Kind)
}

func TestLoad_InvalidAccess(t *testing.T) {
	path := writeFixture(t, `
noise:
  display_name: Noise
  organization: gclef
  access: WEIRD
  supports_lyrics: false
  variants:
    quiet:
      module_name: noise
      class_name: QuietNoise
`)
	_, err := Load(path, fakeResolver{})
	require.Error(t, err)
	var rerr *RegistryError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, ErrConfig, rerr.Kind)
}

func TestEntryExposesVariantSpec(t *testing.T) {
	path := writeFixture(t, sampleYAML)
	resolver := fakeResolver{resolvable: map[string]bool{"singer-api-key": true}}
	reg, err := Load(path, resolver)
	require.NoError(t, err)

	key, err := arena.NewSystemKey("singer", "default")
	require.NoError(t, err)
	entry, ok := reg.Entry(key)
	require.True(t, ok)
	assert.Equal(t, "Singer", entry.Variant.ClassName)
	assert.Equal(t, []string{"singer-api-key"}, entry.Variant.Secrets)
}
