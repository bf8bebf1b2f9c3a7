// Package registry parses the declarative system catalog and exposes
// typed metadata and capability predicates per (system, variant).
package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// VariantSpec carries the deployment-layer identifiers for one variant:
// opaque to the core, but validated at startup so a misconfigured
// variant fails fast rather than at first request.
type VariantSpec struct {
	ModuleName  string         `yaml:"module_name"`
	ClassName   string         `yaml:"class_name"`
	Description string         `yaml:"description,omitempty"`
	Secrets     []string       `yaml:"secrets,omitempty"`
	InitKwargs  map[string]any `yaml:"init_kwargs,omitempty"`
}

// Entry is what the registry holds per SystemKey: the resolved metadata
// plus the variant spec it was derived from.
type Entry struct {
	Metadata arena.SystemMetadata
	Variant  VariantSpec
}

type yamlTrainingData struct {
	Type      string   `yaml:"type"`
	Sources   []string `yaml:"sources"`
	NumTracks *int     `yaml:"num_tracks,omitempty"`
	NumHours  *float64 `yaml:"num_hours,omitempty"`
}

type yamlLinks struct {
	Home  string `yaml:"home,omitempty"`
	Paper string `yaml:"paper,omitempty"`
	Code  string `yaml:"code,omitempty"`
}

type yamlSystem struct {
	DisplayName          string                 `yaml:"display_name"`
	Description          string                 `yaml:"description"`
	Organization         string                 `yaml:"organization"`
	Access               string                 `yaml:"access"`
	SupportsLyrics       bool                   `yaml:"supports_lyrics"`
	RequiresGPU          *bool                  `yaml:"requires_gpu,omitempty"`
	ModelType            string                 `yaml:"model_type,omitempty"`
	TrainingData         yamlTrainingData       `yaml:"training_data,omitempty"`
	Citation             string                 `yaml:"citation,omitempty"`
	Links                yamlLinks              `yaml:"links,omitempty"`
	ReleaseAudioPublicly *bool                  `yaml:"release_audio_publicly,omitempty"`
	Variants             map[string]VariantSpec `yaml:"variants"`
}

// SecretResolver reports whether a named secret can be resolved at
// startup. The default implementation checks the process environment
// using the same naming convention as the upstream system
// (MUSIC_ARENA_SECRET_<TAG>); tests inject a fake.
type SecretResolver interface {
	Resolve(tag string) (ok bool)
}

// EnvSecretResolver resolves secrets from environment variables.
type EnvSecretResolver struct{}

func (EnvSecretResolver) Resolve(tag string) bool {
	_, ok := os.LookupEnv(secretVarName(tag))
	return ok
}

func secretVarName(tag string) string {
	return "MUSIC_ARENA_SECRET_" + upper(tag)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		} else if c == '-' {
			b[i] = '_'
		}
	}
	return string(b)
}

// Registry is the immutable, in-memory system catalog. Parsed once at
// startup; safe for concurrent read-only use thereafter.
type Registry struct {
	entries map[arena.SystemKey]Entry
	ordered []arena.SystemKey
}

// Load parses the registry YAML at path, validating secret resolvability
// and port uniqueness. Returns a *RegistryError wrapping the specific
// failure so callers (the admin CLI especially) can distinguish "file
// missing" from "secret missing" for exit-code purposes.
func Load(path string, resolver SecretResolver) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &RegistryError{Kind: ErrNotFound, Err: err}
	}

	var doc map[string]yamlSystem
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, &RegistryError{Kind: ErrConfig, Err: fmt.Errorf("parse registry yaml: %w", err)}
	}

	if resolver == nil {
		resolver = EnvSecretResolver{}
	}

	entries := make(map[arena.SystemKey]Entry)
	ports := make(map[uint16]arena.SystemKey)

	systemTags := make([]string, 0, len(doc))
	for tag := range doc {
		systemTags = append(systemTags, tag)
	}
	sort.Strings(systemTags)

	for _, systemTag := range systemTags {
		sys := doc[systemTag]
		if len(sys.Variants) == 0 {
			return nil, &RegistryError{Kind: ErrConfig, Err: fmt.Errorf("system %q declares no variants", systemTag)}
		}

		variantTags := make([]string, 0, len(sys.Variants))
		for vt := range sys.Variants {
			variantTags = append(variantTags, vt)
		}
		sort.Strings(variantTags)

		for _, variantTag := range variantTags {
			variant := sys.Variants[variantTag]
			key, err := arena.NewSystemKey(systemTag, variantTag)
			if err != nil {
				return nil, &RegistryError{Kind: ErrConfig, Err: err}
			}

			for _, secretTag := range variant.Secrets {
				if !resolver.Resolve(secretTag) {
					return nil, &RegistryError{
						Kind: ErrSecretMissing,
						Err:  fmt.Errorf("variant %s requires secret %q which is not resolvable", key, secretTag),
					}
				}
			}

			port := key.Port()
			if existing, collides := ports[port]; collides {
				return nil, &RegistryError{
					Kind: ErrConfig,
					Err:  fmt.Errorf("variants %s and %s collide on port %d", existing, key, port),
				}
			}
			ports[port] = key

			access := arena.SystemAccess(sys.Access)
			if access != arena.AccessOpen && access != arena.AccessProprietary {
				return nil, &RegistryError{Kind: ErrConfig, Err: fmt.Errorf("system %q has invalid access %q", systemTag, sys.Access)}
			}

			requiresGPU := access == arena.AccessOpen
			if sys.RequiresGPU != nil {
				requiresGPU = *sys.RequiresGPU
			}
			releasePublicly := true
			if sys.ReleaseAudioPublicly != nil {
				releasePublicly = *sys.ReleaseAudioPublicly
			}

			meta := arena.SystemMetadata{
				Key:            key,
				DisplayName:    sys.DisplayName,
				Description:    firstNonEmpty(variant.Description, sys.Description),
				Organization:   sys.Organization,
				Access:         access,
				ModelType:      sys.ModelType,
				Citation:       sys.Citation,
				SupportsLyrics: sys.SupportsLyrics,
				RequiresGPU:    requiresGPU,
				ReleaseAudioPublicly: releasePublicly,
				Links: arena.Links{
					Home:  sys.Links.Home,
					Paper: sys.Links.Paper,
					Code:  sys.Links.Code,
				},
				TrainingData: arena.TrainingData{
					Type:      sys.TrainingData.Type,
					Sources:   sys.TrainingData.Sources,
					NumTracks: sys.TrainingData.NumTracks,
					NumHours:  sys.TrainingData.NumHours,
				},
			}

			entries[key] = Entry{Metadata: meta, Variant: variant}
		}
	}

	ordered := make([]arena.SystemKey, 0, len(entries))
	for k := range entries {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	return &Registry{entries: entries, ordered: ordered}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Lookup returns the metadata for key, or NotFound (ok=false).
func (r *Registry) Lookup(key arena.SystemKey) (arena.SystemMetadata, bool) {
	e, ok := r.entries[key]
	return e.Metadata, ok
}

// Entry returns the full entry (metadata + variant spec) for key.
func (r *Registry) Entry(key arena.SystemKey) (Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

// All returns every SystemKey in deterministic lexicographic order.
func (r *Registry) All() []arena.SystemKey {
	out := make([]arena.SystemKey, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// ErrorKind distinguishes why registry loading failed, mapped by the
// admin CLI to distinct process exit codes.
type ErrorKind int

const (
	ErrConfig ErrorKind = iota
	ErrNotFound
	ErrSecretMissing
)

// RegistryError wraps a load failure with its ErrorKind.
type RegistryError struct {
	Kind ErrorKind
	Err  error
}

func (e *RegistryError) Error() string { return e.Err.Error() }
func (e *RegistryError) Unwrap() error { return e.Err }
