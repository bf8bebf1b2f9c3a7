package sampler

import (
	"sort"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// PromptSupportFunc reports whether a system can serve the given prompt.
// The gateway supplies this, backed by registry metadata for the common
// case (lyrics capability) and a live probe for anything the registry
// can't determine locally.
type PromptSupportFunc func(key arena.SystemKey, prompt arena.DetailedTextToMusicPrompt) arena.PromptSupport

// Candidates restricts keys to those this prompt, via supportFn, returns
// arena.Supported for. The result is sorted for deterministic downstream
// behavior, though Sample does not require it.
func Candidates(keys []arena.SystemKey, prompt arena.DetailedTextToMusicPrompt, supportFn PromptSupportFunc) []arena.SystemKey {
	var out []arena.SystemKey
	for _, k := range keys {
		if supportFn(k, prompt) == arena.Supported {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
