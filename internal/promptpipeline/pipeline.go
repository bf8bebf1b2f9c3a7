package promptpipeline

import (
	"context"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

// Pipeline runs the three-stage moderate/route/lyrics flow on top of an
// injected ChatProvider, caching completions per (text, config).
type Pipeline struct {
	provider ChatProvider
	cache    *stripedCache
}

func New(provider ChatProvider) *Pipeline {
	return &Pipeline{provider: provider, cache: newStripedCache()}
}

// Process runs route (which itself covers moderation) and, when the
// resulting prompt wants vocals but supplies no lyrics, fills them in.
// This is the single entry point the Gateway's battle orchestration
// calls; it returns a PromptRejected CoreError on moderation failure.
func (p *Pipeline) Process(ctx context.Context, text string) (arena.DetailedTextToMusicPrompt, error) {
	prompt, err := p.Route(ctx, text)
	if err != nil {
		return arena.DetailedTextToMusicPrompt{}, err
	}

	if prompt.GenerateLyrics() {
		lyrics, err := p.GenerateLyrics(ctx, prompt)
		if err != nil {
			return arena.DetailedTextToMusicPrompt{}, err
		}
		prompt.Lyrics = &lyrics
	}

	if err := prompt.Validate(); err != nil {
		return arena.DetailedTextToMusicPrompt{}, arena.NewValidationError(err.Error())
	}
	return prompt, nil
}
