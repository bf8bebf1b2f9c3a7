package gateway

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/generatorclient"
	"github.com/gclef-cmu/music-arena/internal/registry"
	"github.com/gclef-cmu/music-arena/internal/sampler"
)

// ParseWeights parses the comma-separated "a/b/weight" matchup table the
// original CLI accepts via --weights, e.g.
// "noise:quiet/noise:loud/1.0,noise:loud/noise:quiet/0.5". An empty
// string yields a nil table, which sampler.Sample treats as "draw
// uniformly over every ordered pair of candidates".
func ParseWeights(raw string) (sampler.Weights, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	weights := sampler.Weights{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "/")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid weight entry %q, want a/b/weight", entry)
		}
		a, err := arena.ParseSystemKey(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid weight entry %q: %w", entry, err)
		}
		b, err := arena.ParseSystemKey(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid weight entry %q: %w", entry, err)
		}
		w, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight entry %q: %w", entry, err)
		}
		weights[sampler.Pair{A: a, B: b}] = w
	}
	return weights, nil
}

// LoadPrebaked reads the prebaked-prompt catalog from prebaked.json,
// keyed by prompt checksum. A missing file is not an error and just
// warns and continues, since prebaked prompts are only used by
// /prebaked and the deep /health_check probe.
func LoadPrebaked(path string) (map[string]arena.DetailedTextToMusicPrompt, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("prebaked prompts file %s not found, continuing with none", path)
			return map[string]arena.DetailedTextToMusicPrompt{}, nil
		}
		return nil, fmt.Errorf("read prebaked prompts: %w", err)
	}

	var prompts []arena.DetailedTextToMusicPrompt
	if err := json.Unmarshal(raw, &prompts); err != nil {
		return nil, fmt.Errorf("parse prebaked prompts: %w", err)
	}

	out := make(map[string]arena.DetailedTextToMusicPrompt, len(prompts))
	for _, p := range prompts {
		out[p.Checksum()] = p
	}
	return out, nil
}

// BuildClients constructs one Generator Client per registered system,
// addressed at baseURL:port using the deployment-layer port derived from
// SystemKey.Port() — the gateway never special-cases a system's address
// beyond this convention.
func BuildClients(reg *registry.Registry, baseURL string) map[arena.SystemKey]*generatorclient.Client {
	clients := make(map[arena.SystemKey]*generatorclient.Client)
	for _, key := range reg.All() {
		url := fmt.Sprintf("%s:%d", strings.TrimRight(baseURL, "/"), key.Port())
		clients[key] = generatorclient.NewClient(key, url, 0)
	}
	return clients
}
