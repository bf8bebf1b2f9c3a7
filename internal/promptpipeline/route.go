package promptpipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gclef-cmu/music-arena/internal/arena"
)

const routeConfigTag = "4o-v00"

// defaultDurationSeconds is used when the provider declines to infer a
// duration from the prompt; the original leaves this null and lets the
// selected system decide, but arena.DetailedTextToMusicPrompt requires a
// concrete duration, so the pipeline fills one in here.
const defaultDurationSeconds = 30.0

const routingRules = `For prompts that pass moderation, in priority order:

1. Determine if the user intends the song to be instrumental-only or to contain lyrics. If ambiguous, prefer instrumental.
2. Determine if the user suggested a specific duration in seconds. If not, output null.`

type routeResult struct {
	IsOkay       bool     `json:"is_okay"`
	Instrumental bool     `json:"instrumental"`
	Duration     *float64 `json:"duration"`
	Rationale    *string  `json:"rationale"`
	ErrorMessage *string  `json:"error_message"`
}

// Route moderates and structures free text into a DetailedTextToMusicPrompt
// in one provider call, mirroring the original's combined moderate+route
// stage. Rejection surfaces identically to Moderate's.
func (p *Pipeline) Route(ctx context.Context, text string) (arena.DetailedTextToMusicPrompt, error) {
	if cached, ok := p.cache.get(text, "route:"+routeConfigTag); ok {
		return decodeRouteCache(text, cached)
	}

	raw, err := p.provider.Complete(ctx, CompletionRequest{
		Prompt: fmt.Sprintf(
			"Moderate and structure this music generation prompt.\n\n%s\n\n%s\n\nRespond with JSON {\"is_okay\": bool, \"instrumental\"?: bool, \"duration\"?: number|null, \"rationale\"?: string}.\n\nPrompt: %s",
			moderationRules, routingRules, text,
		),
		MaxTokens: 64,
		ForceJSON: true,
	})
	if err != nil {
		return arena.DetailedTextToMusicPrompt{}, arena.NewInternalError("routing provider call failed: " + err.Error())
	}

	var result routeResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return arena.DetailedTextToMusicPrompt{}, arena.NewInternalError("routing provider returned invalid JSON")
	}

	encoded, _ := json.Marshal(result)
	p.cache.put(text, "route:"+routeConfigTag, string(encoded))

	return routeOutcome(text, result)
}

func decodeRouteCache(text, cached string) (arena.DetailedTextToMusicPrompt, error) {
	var result routeResult
	if err := json.Unmarshal([]byte(cached), &result); err != nil {
		return arena.DetailedTextToMusicPrompt{}, arena.NewInternalError("corrupt routing cache entry")
	}
	return routeOutcome(text, result)
}

func routeOutcome(text string, result routeResult) (arena.DetailedTextToMusicPrompt, error) {
	if !result.IsOkay {
		reason := "prompt rejected by routing"
		if result.Rationale != nil {
			reason = *result.Rationale
		} else if result.ErrorMessage != nil {
			reason = *result.ErrorMessage
		}
		return arena.DetailedTextToMusicPrompt{}, arena.NewPromptRejectedError(reason)
	}

	duration := defaultDurationSeconds
	if result.Duration != nil && *result.Duration > 0 {
		duration = *result.Duration
	}

	return arena.DetailedTextToMusicPrompt{
		OverallPrompt: text,
		Duration:      duration,
		Instrumental:  result.Instrumental,
	}, nil
}
