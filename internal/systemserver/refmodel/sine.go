// Package refmodel provides a deterministic, dependency-free BatchModel,
// the model cmd/systemserver serves.
// Real generation models are out of scope for this repo; this stands in
// for them so the batching, warm-up, and per-seed dispatch paths have
// something real to call.
package refmodel

import (
	"context"
	"math"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/systemserver"
)

const sampleRate = 24000

// SineGenerator synthesizes a pure tone whose frequency is derived from
// the prompt's seed, standing in for a real text-to-music model.
type SineGenerator struct {
	prepared bool
}

func NewSineGenerator() *SineGenerator {
	return &SineGenerator{}
}

func (g *SineGenerator) PromptSupport(prompt arena.DetailedTextToMusicPrompt) arena.PromptSupport {
	if prompt.Instrumental && prompt.Lyrics != nil {
		return arena.UnsupportedLyrics
	}
	if prompt.Duration <= 0 || prompt.Duration > 300 {
		return arena.UnsupportedDuration
	}
	return arena.Supported
}

func (g *SineGenerator) Prepare(ctx context.Context) error {
	g.prepared = true
	return nil
}

func (g *SineGenerator) Release(ctx context.Context) error {
	g.prepared = false
	return nil
}

func (g *SineGenerator) GenerateBatch(ctx context.Context, prompts []arena.DetailedTextToMusicPrompt) ([]systemserver.BatchItemResult, error) {
	results := make([]systemserver.BatchItemResult, len(prompts))
	for i, p := range prompts {
		results[i] = systemserver.BatchItemResult{Response: synthesize(p)}
	}
	return results, nil
}

func synthesize(p arena.DetailedTextToMusicPrompt) *arena.TextToMusicResponse {
	freq := 220.0 + float64(p.Seed%440)
	numSamples := int(p.Duration * float64(sampleRate))
	samples := make([]byte, numSamples*2)
	for i := 0; i < numSamples; i++ {
		t := float64(i) / float64(sampleRate)
		v := math.Sin(2 * math.Pi * freq * t)
		sample := int16(v * 32767 * 0.2)
		samples[2*i] = byte(sample)
		samples[2*i+1] = byte(sample >> 8)
	}
	return &arena.TextToMusicResponse{
		AudioBytes: samples,
		SampleRate: sampleRate,
	}
}
