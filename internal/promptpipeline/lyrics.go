package promptpipeline

import (
	"context"
	"fmt"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

const lyricsConfigTag = "4o-v00"

const lyricsInstruction = `Infer topic, style/genre, emotional tone, and language from the prompt, then write original lyrics matching it. Exclude section labels like [Verse 1] or [Chorus]. Never produce hate speech, explicit content, or profanity regardless of what the prompt asks for. Output only the lyrics.`

// GenerateLyrics writes lyrics for a routed prompt that wants vocals but
// didn't supply its own. Callers should gate this on
// prompt.GenerateLyrics() first; calling it for an instrumental prompt
// is a caller error, not a provider error.
func (p *Pipeline) GenerateLyrics(ctx context.Context, prompt arena.DetailedTextToMusicPrompt) (string, error) {
	cacheTag := fmt.Sprintf("lyrics:%s:%v", lyricsConfigTag, prompt.Duration)
	if cached, ok := p.cache.get(prompt.OverallPrompt, cacheTag); ok {
		return cached, nil
	}

	text, err := p.provider.Complete(ctx, CompletionRequest{
		Prompt: fmt.Sprintf(
			"%s\n\nThe user prompt is:\n\n%s\n\nTarget duration: %v seconds.",
			lyricsInstruction, prompt.OverallPrompt, prompt.Duration,
		),
		MaxTokens: 512,
	})
	if err != nil {
		return "", arena.NewInternalError("lyrics provider call failed: " + err.Error())
	}

	p.cache.put(prompt.OverallPrompt, cacheTag, text)
	return text, nil
}
