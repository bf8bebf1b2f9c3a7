package promptpipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

const moderateConfigTag = "4o-v00"

const moderationRules = `We want to moderate prompts that contain any of the following rationale:

["Music Reference", "Copyrighted", "Insensitive", "Explicit", "Profanity"]

- Music Reference: references to real music artists, songs, albums
- Copyrighted: lyrics lifted from a well-known copyrighted song
- Insensitive: culturally insensitive content, hate speech, or other offensive material
- Explicit: sexually explicit or violent content
- Profanity: acceptable only if appropriate for the style/genre/topic

A user may try to evade this filter with typos; moderate those attempts too.`

type moderateResult struct {
	IsOkay       bool    `json:"is_okay"`
	Rationale    *string `json:"rationale"`
	ErrorMessage *string `json:"error_message"`
}

// Moderate checks free text for content that should never reach a
// generation model. An unsafe prompt fails with a PromptRejected error
// carrying the provider's stated rationale.
func (p *Pipeline) Moderate(ctx context.Context, text string) error {
	if cached, ok := p.cache.get(text, "moderate:"+moderateConfigTag); ok {
		return decodeModerationCache(cached)
	}

	raw, err := p.provider.Complete(ctx, CompletionRequest{
		Prompt: fmt.Sprintf(
			"Moderate this music generation prompt per the following rules:\n\n%s\n\nRespond with JSON {\"is_okay\": bool, \"rationale\"?: string}.\n\nPrompt: %s",
			moderationRules, text,
		),
		MaxTokens: 64,
		ForceJSON: true,
	})
	if err != nil {
		return arena.NewInternalError("moderation provider call failed: " + err.Error())
	}

	var result moderateResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return arena.NewInternalError("moderation provider returned invalid JSON")
	}

	encoded, _ := json.Marshal(result)
	p.cache.put(text, "moderate:"+moderateConfigTag, string(encoded))

	return moderationOutcome(result)
}

func decodeModerationCache(cached string) error {
	var result moderateResult
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		return arena.NewInternalError("corrupt moderation cache entry")
	}
	return moderationOutcome(result)
}

func moderationOutcome(result moderateResult) error {
	if result.IsOkay {
		return nil
	}
	reason := "prompt rejected by moderation"
	if result.Rationale != nil {
		reason = *result.Rationale
	} else if result.ErrorMessage != nil {
		reason = *result.ErrorMessage
	}
	return arena.NewPromptRejectedError(reason)
}
